package gateway_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"cadence.app/outreach/core/config"
	"cadence.app/outreach/internal/gateway"
)

var _ = Describe("Client", func() {
	var (
		ctx     context.Context
		server  *httptest.Server
		handler http.HandlerFunc
		hits    atomic.Int32
		client  *gateway.Client
		cfg     config.GatewayConfig
	)

	BeforeEach(func() {
		ctx = context.Background()
		hits.Store(0)
		handler = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			handler(w, r)
		}))
		cfg = config.GatewayConfig{
			BaseURL:         server.URL,
			APIKey:          "secret-key",
			CallTimeout:     2 * time.Second,
			RetryMax:        0,
			BreakerFailures: 3,
			BreakerCooldown: time.Minute,
		}
		client = gateway.New(cfg)
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("SendConnectionRequest", func() {
		It("posts the invite with the api key", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.Method).To(Equal(http.MethodPost))
				Expect(r.URL.Path).To(Equal("/api/v1/users/invite"))
				Expect(r.Header.Get("X-API-KEY")).To(Equal("secret-key"))

				var body map[string]string
				Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
				Expect(body).To(HaveKeyWithValue("provider_id", "ACoAA123"))
				Expect(body).To(HaveKeyWithValue("account_id", "acc-1"))
				Expect(body).To(HaveKeyWithValue("message", "Hi Ada"))

				_, _ = io.WriteString(w, `{"object":"UserInvitationSent","invitation_id":"inv-9"}`)
			}

			ack, err := client.SendConnectionRequest(ctx, "acc-1", "ACoAA123", "Hi Ada")
			Expect(err).NotTo(HaveOccurred())
			Expect(ack.ID).To(Equal("inv-9"))
		})

		It("classifies a provider rejection as permanent", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnprocessableEntity)
				_, _ = io.WriteString(w, `{"type":"errors/already_invited_recently","title":"Already invited"}`)
			}

			_, err := client.SendConnectionRequest(ctx, "acc-1", "ACoAA123", "")
			Expect(gateway.IsPermanent(err)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("already_invited_recently"))
		})

		It("classifies a server error as transient", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			}

			_, err := client.SendConnectionRequest(ctx, "acc-1", "ACoAA123", "")
			Expect(gateway.IsTransient(err)).To(BeTrue())
		})

		It("accepts a 2xx with an unreadable body without resending", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
				_, _ = io.WriteString(w, `{"invitation_id":`)
			}
			cfg.RetryMax = 2
			client = gateway.New(cfg)

			ack, err := client.SendConnectionRequest(ctx, "acc-1", "m-1", "hi")
			Expect(err).NotTo(HaveOccurred())
			Expect(ack.ID).To(BeEmpty())
			Expect(hits.Load()).To(Equal(int32(1)))
		})

		It("rejects a missing member id without calling the provider", func() {
			_, err := client.SendConnectionRequest(ctx, "acc-1", "", "")
			Expect(gateway.IsPermanent(err)).To(BeTrue())
			Expect(hits.Load()).To(BeZero())
		})
	})

	Describe("SendMessage", func() {
		It("posts into a known chat as multipart", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.URL.Path).To(Equal("/api/v1/chats/chat-1/messages"))
				Expect(r.ParseMultipartForm(1 << 20)).To(Succeed())
				Expect(r.FormValue("text")).To(Equal("Hello"))
				_, _ = io.WriteString(w, `{"object":"MessageSent","message_id":"m-1"}`)
			}

			ack, err := client.SendMessage(ctx, "acc-1", gateway.Target{ChatID: "chat-1"}, "Hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(ack.ID).To(Equal("m-1"))
			Expect(ack.ChatID).To(Equal("chat-1"))
		})

		It("starts a chat when only the member is known", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.URL.Path).To(Equal("/api/v1/chats"))
				Expect(r.ParseMultipartForm(1 << 20)).To(Succeed())
				Expect(r.FormValue("account_id")).To(Equal("acc-1"))
				Expect(r.FormValue("attendees_ids")).To(Equal("ACoAA123"))
				_, _ = io.WriteString(w, `{"object":"ChatStarted","chat_id":"chat-new","message_id":"m-2"}`)
			}

			ack, err := client.SendMessage(ctx, "acc-1", gateway.Target{MemberID: "ACoAA123"}, "Hello")
			Expect(err).NotTo(HaveOccurred())
			Expect(ack.ChatID).To(Equal("chat-new"))
		})

		It("refuses an empty text", func() {
			_, err := client.SendMessage(ctx, "acc-1", gateway.Target{ChatID: "chat-1"}, "  ")
			Expect(gateway.IsPermanent(err)).To(BeTrue())
		})
	})

	Describe("ListRelations", func() {
		It("reads the flat list shape", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.URL.Query().Get("account_id")).To(Equal("acc-1"))
				Expect(r.URL.Query().Get("cursor")).To(Equal("c1"))
				_, _ = io.WriteString(w, `{"items":[{"member_id":"m1","public_identifier":"ada"}],"cursor":"c2"}`)
			}

			page, err := client.ListRelations(ctx, "acc-1", "c1")
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Relations).To(ConsistOf(gateway.Relation{MemberID: "m1", PublicIdentifier: "ada"}))
			Expect(page.Cursor).To(Equal("c2"))
		})

		It("reads the nested shape and a null cursor", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, `{"relations":{"items":[{"member_id":"m2","public_identifier":"grace"}],"cursor":null}}`)
			}

			page, err := client.ListRelations(ctx, "acc-1", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Relations).To(HaveLen(1))
			Expect(page.Cursor).To(BeEmpty())
		})
	})

	Describe("ResolveProfile", func() {
		It("returns the member id and network distance", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.URL.Path).To(Equal("/api/v1/users/ada-lovelace"))
				_, _ = io.WriteString(w, `{"provider_id":"ACoAA1","public_identifier":"ada-lovelace","network_distance":"FIRST_DEGREE"}`)
			}

			p, err := client.ResolveProfile(ctx, "acc-1", "ada-lovelace")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.MemberID).To(Equal("ACoAA1"))
			Expect(p.FirstDegree()).To(BeTrue())
		})
	})

	It("treats an unreadable body on a read as transient", func() {
		handler = func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"items":[`)
		}

		_, err := client.ListRelations(ctx, "acc-1", "")
		Expect(gateway.IsTransient(err)).To(BeTrue())
	})

	Describe("OwnProfile", func() {
		It("reads the account holder's member id", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.URL.Path).To(Equal("/api/v1/users/me"))
				Expect(r.URL.Query().Get("account_id")).To(Equal("acc-1"))
				_, _ = io.WriteString(w, `{"provider_id":"ACoME","public_identifier":"me"}`)
			}

			p, err := client.OwnProfile(ctx, "acc-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.MemberID).To(Equal("ACoME"))
		})
	})

	Describe("ListConversations", func() {
		It("pages chats with their attendee", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.URL.Path).To(Equal("/api/v1/chats"))
				Expect(r.URL.Query().Get("cursor")).To(Equal("c1"))
				_, _ = io.WriteString(w, `{"items":[{"id":"chat-1","attendee_provider_id":"m1"}],"cursor":null}`)
			}

			page, err := client.ListConversations(ctx, "acc-1", "c1")
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Conversations).To(ConsistOf(gateway.Conversation{ChatID: "chat-1", MemberID: "m1"}))
			Expect(page.Cursor).To(BeEmpty())
		})
	})

	Describe("ListSentInvitations", func() {
		It("normalizes both field shapes and defaults to pending", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.URL.Path).To(Equal("/api/v1/users/invite/sent"))
				_, _ = io.WriteString(w, `{"items":[
					{"id":"inv-1","invited_user_id":"m1","invited_user_public_id":"ada"},
					{"id":"inv-2","user_provider_id":"m2","user_public_identifier":"grace","status":"ACCEPTED"}
				],"cursor":"next"}`)
			}

			page, err := client.ListSentInvitations(ctx, "acc-1", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(page.Invitations).To(Equal([]gateway.Invitation{
				{ID: "inv-1", MemberID: "m1", PublicIdentifier: "ada", Status: gateway.InvitationStatusPending},
				{ID: "inv-2", MemberID: "m2", PublicIdentifier: "grace", Status: gateway.InvitationStatusAccepted},
			}))
			Expect(page.Cursor).To(Equal("next"))
		})
	})

	Describe("circuit breaker", func() {
		It("opens after consecutive failures and fails fast as transient", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			}

			for i := 0; i < 3; i++ {
				_, err := client.ResolveProfile(ctx, "acc-1", "ada")
				Expect(gateway.IsTransient(err)).To(BeTrue())
			}
			Expect(hits.Load()).To(Equal(int32(3)))

			_, err := client.ResolveProfile(ctx, "acc-1", "ada")
			Expect(gateway.IsTransient(err)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring("circuit open"))
			Expect(hits.Load()).To(Equal(int32(3)))
		})

		It("does not count permanent rejections as failures", func() {
			handler = func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			}

			for i := 0; i < 5; i++ {
				_, err := client.ResolveProfile(ctx, "acc-1", "ghost")
				Expect(gateway.IsPermanent(err)).To(BeTrue())
			}
			Expect(hits.Load()).To(Equal(int32(5)))
		})
	})

	It("treats a timeout as transient", func() {
		cfg.CallTimeout = 50 * time.Millisecond
		client = gateway.New(cfg)
		handler = func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}

		_, err := client.ListConversations(ctx, "acc-1", "")
		Expect(gateway.IsTransient(err)).To(BeTrue())
	})
})

var _ = Describe("ClassifyStatus", func() {
	DescribeTable("maps provider statuses",
		func(status int, want gateway.Class) {
			Expect(gateway.ClassifyStatus(status)).To(Equal(want))
		},
		Entry("rate limited", http.StatusTooManyRequests, gateway.Transient),
		Entry("request timeout", http.StatusRequestTimeout, gateway.Transient),
		Entry("too early", http.StatusTooEarly, gateway.Transient),
		Entry("unauthorized account", http.StatusUnauthorized, gateway.Transient),
		Entry("unavailable", http.StatusServiceUnavailable, gateway.Transient),
		Entry("bad request", http.StatusBadRequest, gateway.Permanent),
		Entry("forbidden", http.StatusForbidden, gateway.Permanent),
		Entry("not found", http.StatusNotFound, gateway.Permanent),
		Entry("unprocessable", http.StatusUnprocessableEntity, gateway.Permanent),
	)
})
