package protocol

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrUnknownCommand is returned by Parse for a verb it does not know.
var ErrUnknownCommand = errors.New("unknown command")

// BadRequestError describes a malformed command line. Reason is sent back
// to the client.
type BadRequestError struct {
	Reason string
}

func (e *BadRequestError) Error() string { return "bad request: " + e.Reason }

func badRequest(format string, args ...any) error {
	return &BadRequestError{Reason: fmt.Sprintf(format, args...)}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

type parseFunc func(args []string) (Command, error)

var parsers = map[Verb]parseFunc{
	VerbCreateReservation:      parseCreateReservation,
	VerbSuggestSlots:           parseSuggestSlots,
	VerbGetReservation:         parseGetReservation,
	VerbGetReservationByCode:   oneCode(func(c string) Command { return GetReservationByCode{Code: c} }),
	VerbUpdateReservation:      parseUpdateReservation,
	VerbCancelReservation:      oneCode(func(c string) Command { return CancelReservation{Code: c} }),
	VerbMarkLate:               oneCode(func(c string) Command { return MarkLate{Code: c} }),
	VerbReceiveTable:           oneCode(func(c string) Command { return ReceiveTable{Code: c} }),
	VerbGetReservationsByDate:  parseGetReservationsByDate,
	VerbAddWaitingList:         parseAddWaitingList,
	VerbLeaveWaitingList:       oneCode(func(c string) Command { return LeaveWaitingList{Code: c} }),
	VerbGetWaitingList:         noArgs(GetWaitingList{}),
	VerbSubscribeWaitingList:   noArgs(SubscribeWaitingList{}),
	VerbUnsubscribeWaitingList: noArgs(UnsubscribeWaitingList{}),
	VerbGetBill:                oneCode(func(c string) Command { return GetBill{Code: c} }),
	VerbPayBill:                parsePayBill,
	VerbReleaseTable:           parseReleaseTable,
	VerbListTables:             noArgs(ListTables{}),
	VerbSweepExpired:           noArgs(SweepExpired{}),
	VerbLogin:                  parseLogin,
	VerbIdentify:               parseIdentify,
	VerbQuit:                   noArgs(Quit{}),
}

// Parse turns one request line into a validated Command. Trailing CR and
// surrounding blanks are ignored; the verb is matched case-insensitively.
func Parse(line string) (Command, error) {
	fields := strings.Fields(strings.TrimRight(line, "\r\n"))
	if len(fields) == 0 {
		return nil, badRequest("empty line")
	}
	verb := Verb(strings.ToUpper(fields[0]))
	parse, ok := parsers[verb]
	if !ok {
		return nil, ErrUnknownCommand
	}
	cmd, err := parse(fields[1:])
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(cmd); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return nil, badRequest("%s %s", strings.ToLower(fe.Field()), fe.Tag())
		}
		return nil, badRequest("%v", err)
	}
	return cmd, nil
}

func arity(args []string, min, max int) error {
	if len(args) < min || len(args) > max {
		if min == max {
			return badRequest("expected %d argument(s), got %d", min, len(args))
		}
		return badRequest("expected %d to %d arguments, got %d", min, max, len(args))
	}
	return nil
}

func atoi(name, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, badRequest("%s must be a number", name)
	}
	return n, nil
}

func atou(name, s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, badRequest("%s must be a positive number", name)
	}
	return n, nil
}

// subscriberArg reads an optional subscriber id. "0", "-" and "null" mean
// a casual guest.
func subscriberArg(s string) (*uint64, error) {
	switch strings.ToLower(s) {
	case "", "0", "-", "null":
		return nil, nil
	}
	id, err := atou("subscriberId", s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func noArgs(cmd Command) parseFunc {
	return func(args []string) (Command, error) {
		if err := arity(args, 0, 0); err != nil {
			return nil, err
		}
		return cmd, nil
	}
}

func oneCode(build func(code string) Command) parseFunc {
	return func(args []string) (Command, error) {
		if err := arity(args, 1, 1); err != nil {
			return nil, err
		}
		return build(args[0]), nil
	}
}

// #CREATE_RESERVATION <guests> <date> <time> <code> <subscriberId> [phone] [email]
func parseCreateReservation(args []string) (Command, error) {
	if err := arity(args, 5, 7); err != nil {
		return nil, err
	}
	guests, err := atoi("guests", args[0])
	if err != nil {
		return nil, err
	}
	sub, err := subscriberArg(args[4])
	if err != nil {
		return nil, err
	}
	cmd := CreateReservation{Guests: guests, Date: args[1], Time: args[2], Code: args[3], SubscriberID: sub}
	for _, extra := range args[5:] {
		// phone and email may come in either order; an email has an @
		if strings.Contains(extra, "@") {
			cmd.Email = extra
		} else {
			cmd.Phone = extra
		}
	}
	if cmd.SubscriberID == nil && cmd.Phone == "" && cmd.Email == "" {
		return nil, badRequest("phone or email required for casual guests")
	}
	return cmd, nil
}

// #SUGGEST_SLOTS <guests> <date> <time>
func parseSuggestSlots(args []string) (Command, error) {
	if err := arity(args, 3, 3); err != nil {
		return nil, err
	}
	guests, err := atoi("guests", args[0])
	if err != nil {
		return nil, err
	}
	return SuggestSlots{Guests: guests, Date: args[1], Time: args[2]}, nil
}

func parseGetReservation(args []string) (Command, error) {
	if err := arity(args, 1, 1); err != nil {
		return nil, err
	}
	id, err := atou("id", args[0])
	if err != nil {
		return nil, err
	}
	return GetReservation{ID: id}, nil
}

// #UPDATE_RESERVATION <id> <guests> <date> <time>
func parseUpdateReservation(args []string) (Command, error) {
	if err := arity(args, 4, 4); err != nil {
		return nil, err
	}
	id, err := atou("id", args[0])
	if err != nil {
		return nil, err
	}
	guests, err := atoi("guests", args[1])
	if err != nil {
		return nil, err
	}
	return UpdateReservation{ID: id, Guests: guests, Date: args[2], Time: args[3]}, nil
}

func parseGetReservationsByDate(args []string) (Command, error) {
	if err := arity(args, 1, 1); err != nil {
		return nil, err
	}
	return GetReservationsByDate{Date: args[0]}, nil
}

// #ADD_WAITING_LIST <guests> <contactB64> <code> [subscriberId]
func parseAddWaitingList(args []string) (Command, error) {
	if err := arity(args, 3, 4); err != nil {
		return nil, err
	}
	guests, err := atoi("guests", args[0])
	if err != nil {
		return nil, err
	}
	contact, err := base64.StdEncoding.DecodeString(args[1])
	if err != nil {
		return nil, badRequest("contact must be base64")
	}
	cmd := AddWaitingList{Guests: guests, Contact: string(contact), Code: args[2]}
	if len(args) == 4 {
		if cmd.SubscriberID, err = subscriberArg(args[3]); err != nil {
			return nil, err
		}
	}
	return cmd, nil
}

// #PAY_BILL <code> <method>
func parsePayBill(args []string) (Command, error) {
	if err := arity(args, 2, 2); err != nil {
		return nil, err
	}
	return PayBill{Code: args[0], Method: strings.ToUpper(args[1])}, nil
}

func parseReleaseTable(args []string) (Command, error) {
	if err := arity(args, 1, 1); err != nil {
		return nil, err
	}
	n, err := atoi("table", args[0])
	if err != nil {
		return nil, err
	}
	return ReleaseTable{Number: n}, nil
}

func parseLogin(args []string) (Command, error) {
	if err := arity(args, 2, 2); err != nil {
		return nil, err
	}
	return Login{Username: args[0], Password: args[1]}, nil
}

func parseIdentify(args []string) (Command, error) {
	if err := arity(args, 1, 1); err != nil {
		return nil, err
	}
	return Identify{Token: args[0]}, nil
}
