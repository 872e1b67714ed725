package service_test

import (
	"context"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"cadence.app/outreach/internal/gateway"
	"cadence.app/outreach/internal/gateway/gatewaytest"
	"cadence.app/outreach/internal/model"
	"cadence.app/outreach/internal/service"
	"cadence.app/outreach/internal/store/storetest"
)

var _ = Describe("WebhookProcessor", func() {
	var (
		ctx       context.Context
		mem       *storetest.Memory
		gw        *gatewaytest.Fake
		processor service.WebhookProcessor
		account   model.Account
	)

	store := func(kind model.WebhookKind, payload any) model.WebhookEvent {
		raw, err := json.Marshal(payload)
		Expect(err).NotTo(HaveOccurred())
		ev, _, err := mem.WebhookEvents().CreateOrGet(ctx, &model.WebhookEvent{
			Kind:      kind,
			Payload:   raw,
			DedupeKey: string(kind) + ":" + string(raw),
		})
		Expect(err).NotTo(HaveOccurred())
		return *ev
	}
	process := func(ev model.WebhookEvent) string {
		Expect(processor.Process(ctx, ev.ID)).To(Succeed())
		stored := mem.WebhookEvent(ev.ID)
		Expect(stored.ProcessedAt).NotTo(BeNil())
		return *stored.Resolution
	}
	memberID := func(s string) *string { return &s }

	BeforeEach(func() {
		ctx = context.Background()
		mem = storetest.NewMemory()
		gw = &gatewaytest.Fake{}
		processor = service.NewWebhookProcessor(mem, mem, gw)
		account = mem.PutAccount(model.Account{ProviderAccountID: "prov-acc", OwnMemberID: memberID("me"), Timezone: "UTC"})
	})

	Describe("new_relation", func() {
		It("connects an invited lead found by member id", func() {
			lead := mem.PutLead(model.Lead{AccountID: account.ID, ProviderMemberID: memberID("m-1"), Status: model.LeadStatusInviteSent, CurrentStep: 1})

			res := process(store(model.WebhookKindRelationAccepted, model.RelationAcceptedPayload{AccountID: "prov-acc", MemberID: "m-1"}))

			Expect(res).To(Equal(service.ResolutionConnected))
			Expect(mem.Lead(lead.ID).Status).To(Equal(model.LeadStatusConnected))
			events := mem.EventsFor(lead.ID)
			Expect(events).To(HaveLen(1))
			Expect(events[0].Type()).To(Equal(model.EventTypeConnectionAccepted))
			Expect(events[0].Meta).To(Equal(model.ConnectionAcceptedMeta{Method: model.AcceptanceMethodWebhook, AccountID: account.ID}))
		})

		It("resolves a public identifier to a member id through the provider", func() {
			lead := mem.PutLead(model.Lead{AccountID: account.ID, ProviderMemberID: memberID("m-7"), PublicIdentifier: "other-slug", Status: model.LeadStatusInviteSent})
			gw.ResolveProfileFn = func(context.Context, string, string) (*gateway.Profile, error) {
				return &gateway.Profile{MemberID: "m-7"}, nil
			}

			res := process(store(model.WebhookKindRelationAccepted, model.RelationAcceptedPayload{AccountID: "prov-acc", PublicIdentifier: "ada"}))

			Expect(res).To(Equal(service.ResolutionConnected))
			Expect(mem.Lead(lead.ID).Status).To(Equal(model.LeadStatusConnected))
		})

		It("falls back to a direct public identifier match", func() {
			lead := mem.PutLead(model.Lead{AccountID: account.ID, PublicIdentifier: "ada", Status: model.LeadStatusInviteSent})
			gw.ResolveProfileFn = func(context.Context, string, string) (*gateway.Profile, error) {
				return nil, &gateway.Error{Op: "resolve_profile", StatusCode: 404, Class: gateway.Permanent}
			}

			res := process(store(model.WebhookKindRelationAccepted, model.RelationAcceptedPayload{AccountID: "prov-acc", PublicIdentifier: "ada"}))

			Expect(res).To(Equal(service.ResolutionConnected))
			Expect(mem.Lead(lead.ID).Status).To(Equal(model.LeadStatusConnected))
		})

		It("returns transient provider errors so the webhook is retried", func() {
			gw.ResolveProfileFn = func(context.Context, string, string) (*gateway.Profile, error) {
				return nil, &gateway.Error{Op: "resolve_profile", StatusCode: 503, Class: gateway.Transient}
			}
			ev := store(model.WebhookKindRelationAccepted, model.RelationAcceptedPayload{AccountID: "prov-acc", PublicIdentifier: "ada"})

			Expect(processor.Process(ctx, ev.ID)).NotTo(Succeed())
			stored := mem.WebhookEvent(ev.ID)
			Expect(stored.ProcessedAt).To(BeNil())
			Expect(stored.ProcessingError).NotTo(BeNil())
		})

		It("does not add a second acceptance for an already connected lead", func() {
			lead := mem.PutLead(model.Lead{AccountID: account.ID, ProviderMemberID: memberID("m-1"), Status: model.LeadStatusInviteSent})
			process(store(model.WebhookKindRelationAccepted, model.RelationAcceptedPayload{AccountID: "prov-acc", MemberID: "m-1"}))

			res := process(store(model.WebhookKindRelationAccepted, model.RelationAcceptedPayload{AccountID: "prov-acc", MemberID: "m-1", PublicIdentifier: "x"}))

			Expect(res).To(Equal(service.ResolutionAlreadyHandled))
			Expect(mem.EventsFor(lead.ID)).To(HaveLen(1))
		})

		It("records unmatched relations", func() {
			res := process(store(model.WebhookKindRelationAccepted, model.RelationAcceptedPayload{AccountID: "prov-acc", MemberID: "nobody"}))
			Expect(res).To(Equal(service.ResolutionNoLead))
		})
	})

	Describe("message_received", func() {
		var lead model.Lead

		BeforeEach(func() {
			lead = mem.PutLead(model.Lead{AccountID: account.ID, ProviderMemberID: memberID("m-1"), Status: model.LeadStatusMessaged, CurrentStep: 2})
		})

		It("marks the lead responded", func() {
			res := process(store(model.WebhookKindMessageReceived, model.MessageReceivedPayload{
				AccountID: "prov-acc", SenderID: "m-1", ChatID: "chat-1", MessageID: "msg-1", Text: "hi!",
			}))

			Expect(res).To(Equal(service.ResolutionResponded))
			stored := mem.Lead(lead.ID)
			Expect(stored.Status).To(Equal(model.LeadStatusResponded))
			Expect(stored.RespondedAt).NotTo(BeNil())
			Expect(stored.Chat()).To(Equal("chat-1"))
		})

		It("is idempotent for the same provider message", func() {
			payload := model.MessageReceivedPayload{AccountID: "prov-acc", SenderID: "m-1", MessageID: "msg-1"}
			process(store(model.WebhookKindMessageReceived, payload))
			payload.Text = "same message, new envelope"

			res := process(store(model.WebhookKindMessageReceived, payload))

			Expect(res).To(Equal(service.ResolutionDuplicate))
			Expect(mem.EventsFor(lead.ID)).To(HaveLen(1))
			Expect(mem.Lead(lead.ID).Status).To(Equal(model.LeadStatusResponded))
		})

		It("matches by chat when the sender is unknown", func() {
			chatted := mem.PutLead(model.Lead{AccountID: account.ID, ChatID: memberID("chat-9"), Status: model.LeadStatusMessaged})

			res := process(store(model.WebhookKindMessageReceived, model.MessageReceivedPayload{
				AccountID: "prov-acc", SenderID: "unknown", ChatID: "chat-9", MessageID: "msg-2",
			}))

			Expect(res).To(Equal(service.ResolutionResponded))
			Expect(mem.Lead(chatted.ID).Status).To(Equal(model.LeadStatusResponded))
		})

		It("responds even from a completed sequence", func() {
			done := mem.PutLead(model.Lead{AccountID: account.ID, ProviderMemberID: memberID("m-2"), Status: model.LeadStatusCompleted})

			process(store(model.WebhookKindMessageReceived, model.MessageReceivedPayload{AccountID: "prov-acc", SenderID: "m-2", MessageID: "msg-3"}))

			Expect(mem.Lead(done.ID).Status).To(Equal(model.LeadStatusResponded))
		})

		DescribeTable("ignores outbound messages",
			func(payload model.MessageReceivedPayload) {
				res := process(store(model.WebhookKindMessageReceived, payload))

				Expect(res).To(Equal(service.ResolutionOutbound))
				Expect(mem.Lead(lead.ID).Status).To(Equal(model.LeadStatusMessaged))
				Expect(mem.EventsFor(lead.ID)).To(BeEmpty())
			},
			Entry("flagged by the provider", model.MessageReceivedPayload{AccountID: "prov-acc", SenderID: "m-1", ChatID: "chat-1", MessageID: "msg-4", IsSender: true}),
			Entry("sent by the account holder", model.MessageReceivedPayload{AccountID: "prov-acc", SenderID: "me", ChatID: "chat-1", MessageID: "msg-5"}),
		)

		Context("when the account's own member id is not stored", func() {
			var (
				anon    model.Account
				chatted model.Lead
			)

			BeforeEach(func() {
				anon = mem.PutAccount(model.Account{ProviderAccountID: "prov-anon", Timezone: "UTC"})
				chatted = mem.PutLead(model.Lead{AccountID: anon.ID, ProviderMemberID: memberID("m-lead"), ChatID: memberID("chat-1"), Status: model.LeadStatusMessaged, CurrentStep: 2})
			})

			echo := model.MessageReceivedPayload{AccountID: "prov-anon", SenderID: "our-own-member", ChatID: "chat-1", MessageID: "msg-echo"}

			It("resolves it once and treats our own echo as outbound", func() {
				gw.OwnProfileFn = func(context.Context, string) (*gateway.Profile, error) {
					return &gateway.Profile{MemberID: "our-own-member"}, nil
				}

				res := process(store(model.WebhookKindMessageReceived, echo))

				Expect(res).To(Equal(service.ResolutionOutbound))
				Expect(mem.Lead(chatted.ID).Status).To(Equal(model.LeadStatusMessaged))
				acc, err := mem.Accounts().GetByID(ctx, anon.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(acc.OwnMemberID).To(HaveValue(Equal("our-own-member")))

				process(store(model.WebhookKindMessageReceived, model.MessageReceivedPayload{
					AccountID: "prov-anon", SenderID: "m-lead", ChatID: "chat-1", MessageID: "msg-reply",
				}))
				Expect(gw.Calls("own_profile")).To(HaveLen(1))
				Expect(mem.Lead(chatted.ID).Status).To(Equal(model.LeadStatusResponded))
			})

			It("does not mark the chat's lead responded when our id cannot be resolved", func() {
				gw.OwnProfileFn = func(context.Context, string) (*gateway.Profile, error) {
					return nil, &gateway.Error{Op: "own_profile", Class: gateway.Permanent, StatusCode: 404}
				}

				res := process(store(model.WebhookKindMessageReceived, echo))

				Expect(res).To(Equal(service.ResolutionNoLead))
				Expect(mem.Lead(chatted.ID).Status).To(Equal(model.LeadStatusMessaged))
				Expect(mem.EventsFor(chatted.ID)).To(BeEmpty())
			})

			It("leaves the event for a retry when the provider is down", func() {
				gw.OwnProfileFn = func(context.Context, string) (*gateway.Profile, error) {
					return nil, &gateway.Error{Op: "own_profile", Class: gateway.Transient, StatusCode: 503}
				}
				ev := store(model.WebhookKindMessageReceived, echo)

				Expect(processor.Process(ctx, ev.ID)).NotTo(Succeed())
				Expect(mem.WebhookEvent(ev.ID).ProcessedAt).To(BeNil())
				Expect(mem.Lead(chatted.ID).Status).To(Equal(model.LeadStatusMessaged))
			})
		})

		It("ignores a chat match when the sender is not that chat's lead", func() {
			chatted := mem.PutLead(model.Lead{AccountID: account.ID, ProviderMemberID: memberID("m-7"), ChatID: memberID("chat-7"), Status: model.LeadStatusMessaged})

			res := process(store(model.WebhookKindMessageReceived, model.MessageReceivedPayload{
				AccountID: "prov-acc", SenderID: "someone-else", ChatID: "chat-7", MessageID: "msg-7",
			}))

			Expect(res).To(Equal(service.ResolutionNoLead))
			Expect(mem.Lead(chatted.ID).Status).To(Equal(model.LeadStatusMessaged))
		})

		It("records the receiving account on the event", func() {
			process(store(model.WebhookKindMessageReceived, model.MessageReceivedPayload{AccountID: "prov-acc", SenderID: "m-1", MessageID: "msg-8"}))

			events := mem.EventsFor(lead.ID)
			Expect(events).To(HaveLen(1))
			Expect(events[0].Meta).To(Equal(model.MessageReceivedMeta{ProviderMessageID: "msg-8", AccountID: account.ID}))
		})

		It("records messages for unknown accounts", func() {
			res := process(store(model.WebhookKindMessageReceived, model.MessageReceivedPayload{AccountID: "other", SenderID: "m-1", MessageID: "msg-6"}))
			Expect(res).To(Equal(service.ResolutionUnknownAccount))
		})
	})

	It("updates the account status", func() {
		res := process(store(model.WebhookKindAccountStatus, model.AccountStatusPayload{AccountID: "prov-acc", Status: model.AccountStatusCredentials}))

		Expect(res).To(Equal(service.ResolutionAccountUpdated))
		acc, err := mem.Accounts().GetByID(ctx, account.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(acc.Status).To(Equal(model.AccountStatusCredentials))
	})

	It("ignores read receipts", func() {
		res := process(store(model.WebhookKindMessageRead, map[string]string{"account_id": "prov-acc"}))
		Expect(res).To(Equal(service.ResolutionIgnored))
	})

	It("skips an event that was already processed", func() {
		ev := store(model.WebhookKindMessageRead, map[string]string{"account_id": "prov-acc"})
		process(ev)
		Expect(processor.Process(ctx, ev.ID)).To(Succeed())
	})
})
