package example

type LeadStatus string

const (
	LeadStatusInviteSent LeadStatus = "invite_sent"
	LeadStatusResponded  LeadStatus = "responded"
)

type AccountStatus string

const (
	AccountStatusConnected AccountStatus = "connected"
)

// Label has no constants, so it is free text.
type Label string

type Lead struct {
	Status LeadStatus
	Label  Label
}

type Account struct {
	Status AccountStatus
}

func bad() {
	l := &Lead{}
	l.Status = "responded" // want `enum field Status assigned string literal "responded", use a declared constant`

	_ = Account{Status: "connected"} // want `enum field Status assigned string literal "connected", use a declared constant`
}

func good() {
	l := &Lead{}
	l.Status = LeadStatusInviteSent
	l.Label = "vip"

	_ = Account{Status: AccountStatusConnected}
}

func alsoGood() {
	status := LeadStatusResponded
	l := &Lead{Status: status}
	_ = l
}
