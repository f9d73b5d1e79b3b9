// Package protocol implements the line protocol spoken over client
// connections: each request line "#VERB arg arg..." is parsed once into a
// typed Command, checked by Authorize and executed by the Dispatcher, which
// answers with exactly one pipe-delimited response line.
package protocol

// Verb names a command on the wire.
type Verb string

const (
	VerbCreateReservation      Verb = "#CREATE_RESERVATION"
	VerbSuggestSlots           Verb = "#SUGGEST_SLOTS"
	VerbGetReservation         Verb = "#GET_RESERVATION"
	VerbGetReservationByCode   Verb = "#GET_RESERVATION_BY_CODE"
	VerbUpdateReservation      Verb = "#UPDATE_RESERVATION"
	VerbCancelReservation      Verb = "#CANCEL_RESERVATION"
	VerbMarkLate               Verb = "#MARK_LATE"
	VerbReceiveTable           Verb = "#RECEIVE_TABLE"
	VerbGetReservationsByDate  Verb = "#GET_RESERVATIONS_BY_DATE"
	VerbAddWaitingList         Verb = "#ADD_WAITING_LIST"
	VerbLeaveWaitingList       Verb = "#LEAVE_WAITING_LIST"
	VerbGetWaitingList         Verb = "#GET_WAITING_LIST"
	VerbSubscribeWaitingList   Verb = "#SUBSCRIBE_WAITING_LIST"
	VerbUnsubscribeWaitingList Verb = "#UNSUBSCRIBE_WAITING_LIST"
	VerbGetBill                Verb = "#GET_BILL"
	VerbPayBill                Verb = "#PAY_BILL"
	VerbReleaseTable           Verb = "#RELEASE_TABLE"
	VerbListTables             Verb = "#LIST_TABLES"
	VerbSweepExpired           Verb = "#SWEEP_EXPIRED"
	VerbLogin                  Verb = "#LOGIN"
	VerbIdentify               Verb = "#IDENTIFY"
	VerbQuit                   Verb = "#QUIT"
)

// Command is one parsed request. The set of implementations is closed:
// only this package defines them.
type Command interface {
	Verb() Verb
}

type CreateReservation struct {
	Guests       int     `validate:"min=1,max=100"`
	Date         string  `validate:"required,datetime=2006-01-02"`
	Time         string  `validate:"required,datetime=15:04"`
	Code         string  `validate:"required,max=32,alphanum"`
	SubscriberID *uint64 `validate:"omitempty,min=1"`
	Phone        string  `validate:"omitempty,max=32"`
	Email        string  `validate:"omitempty,email,max=128"`
}

type SuggestSlots struct {
	Guests int    `validate:"min=1,max=100"`
	Date   string `validate:"required,datetime=2006-01-02"`
	Time   string `validate:"required,datetime=15:04"`
}

type GetReservation struct {
	ID uint64 `validate:"min=1"`
}

type GetReservationByCode struct {
	Code string `validate:"required,max=32"`
}

type UpdateReservation struct {
	ID     uint64 `validate:"min=1"`
	Guests int    `validate:"min=1,max=100"`
	Date   string `validate:"required,datetime=2006-01-02"`
	Time   string `validate:"required,datetime=15:04"`
}

type CancelReservation struct {
	Code string `validate:"required,max=32"`
}

type MarkLate struct {
	Code string `validate:"required,max=32"`
}

type ReceiveTable struct {
	Code string `validate:"required,max=32"`
}

type GetReservationsByDate struct {
	Date string `validate:"required,datetime=2006-01-02"`
}

type AddWaitingList struct {
	Guests       int     `validate:"min=1,max=100"`
	Contact      string  `validate:"required,max=256"`
	Code         string  `validate:"required,max=32,alphanum"`
	SubscriberID *uint64 `validate:"omitempty,min=1"`
}

type LeaveWaitingList struct {
	Code string `validate:"required,max=32"`
}

type GetWaitingList struct{}

type SubscribeWaitingList struct{}

type UnsubscribeWaitingList struct{}

type GetBill struct {
	Code string `validate:"required,max=32"`
}

type PayBill struct {
	Code   string `validate:"required,max=32"`
	Method string `validate:"required,oneof=CASH CARD CREDIT"`
}

type ReleaseTable struct {
	Number int `validate:"min=1"`
}

type ListTables struct{}

type SweepExpired struct{}

type Login struct {
	Username string `validate:"required,max=64"`
	Password string `validate:"required,max=128"`
}

type Identify struct {
	Token string `validate:"required"`
}

type Quit struct{}

func (CreateReservation) Verb() Verb      { return VerbCreateReservation }
func (SuggestSlots) Verb() Verb           { return VerbSuggestSlots }
func (GetReservation) Verb() Verb         { return VerbGetReservation }
func (GetReservationByCode) Verb() Verb   { return VerbGetReservationByCode }
func (UpdateReservation) Verb() Verb      { return VerbUpdateReservation }
func (CancelReservation) Verb() Verb      { return VerbCancelReservation }
func (MarkLate) Verb() Verb               { return VerbMarkLate }
func (ReceiveTable) Verb() Verb           { return VerbReceiveTable }
func (GetReservationsByDate) Verb() Verb  { return VerbGetReservationsByDate }
func (AddWaitingList) Verb() Verb         { return VerbAddWaitingList }
func (LeaveWaitingList) Verb() Verb       { return VerbLeaveWaitingList }
func (GetWaitingList) Verb() Verb         { return VerbGetWaitingList }
func (SubscribeWaitingList) Verb() Verb   { return VerbSubscribeWaitingList }
func (UnsubscribeWaitingList) Verb() Verb { return VerbUnsubscribeWaitingList }
func (GetBill) Verb() Verb                { return VerbGetBill }
func (PayBill) Verb() Verb                { return VerbPayBill }
func (ReleaseTable) Verb() Verb           { return VerbReleaseTable }
func (ListTables) Verb() Verb             { return VerbListTables }
func (SweepExpired) Verb() Verb           { return VerbSweepExpired }
func (Login) Verb() Verb                  { return VerbLogin }
func (Identify) Verb() Verb               { return VerbIdentify }
func (Quit) Verb() Verb                   { return VerbQuit }
