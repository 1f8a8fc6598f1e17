package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	SplitEqual  SplitMode = "equal"
	SplitCustom SplitMode = "custom"
)

type (
	// SplitMode selects how an expense is divided among participants.
	SplitMode string

	// Handle identifies a registered user by email. The tracker never
	// exposes raw strings across package boundaries; handles are validated
	// and normalized (lowercased, trimmed) on construction.
	Handle string

	// Expense is a shared cost paid upfront by one user. Its split
	// sub-structure (PaymentStatus, NonRoommateNotes) is mutated only by
	// settlement operations.
	Expense struct {
		ID           string
		Description  string
		Amount       Money
		Payer        Handle
		SplitMode    SplitMode
		Participants []Handle // excludes the payer

		// PaymentStatus holds one entry per participant, in participant
		// order, created from the split plan at expense-creation time.
		PaymentStatus []ParticipantShare

		// NonRoommateNotes are bookkeeping-only entries for people outside
		// the user system. They are never applied to the balance ledger.
		NonRoommateNotes []NonRoommateNote

		CreatedAt time.Time
	}

	// ParticipantShare is one participant's obligation on an expense.
	ParticipantShare struct {
		Participant Handle
		Owed        Money
		IsPaid      bool
		PaidAt      time.Time
		Notes       string
	}

	// NonRoommateNote records money owed by someone who is not a registered
	// user. Person is free text.
	NonRoommateNote struct {
		Person      string
		Amount      Money
		Description string
		IsPaid      bool
		PaidAt      time.Time
	}

	// User is an external collaborator entity; the tracker only reads
	// identity from it.
	User struct {
		Handle    Handle
		Name      string
		CreatedAt time.Time
	}
)

var (
	ErrNotFound             = errors.New("not found")
	ErrAlreadyPaid          = errors.New("entry already marked paid")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidHandle        = errors.New("invalid user handle")
	ErrEmptyDescription     = errors.New("empty description")
	ErrDescriptionTooLong   = errors.New("description too long")
	ErrEmptyNotePerson      = errors.New("non-roommate note requires a person")
	ErrDuplicateParticipant = errors.New("duplicate participant")
	ErrPayerIsParticipant   = errors.New("payer cannot be a participant")
	ErrNoParticipants       = errors.New("at least one participant is required")
	ErrInvalidSplitMode     = errors.New("invalid split mode")
	ErrCustomExceedsTotal   = errors.New("custom amounts exceed expense total")
	ErrMissingCustomAmount  = errors.New("custom amount required for every participant")
)

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsConflict reports whether err is (or wraps) ErrAlreadyPaid.
func IsConflict(err error) bool { return errors.Is(err, ErrAlreadyPaid) }

// IsValidation reports whether err belongs to the validation family:
// everything a caller can fix by correcting its input.
func IsValidation(err error) bool {
	for _, sentinel := range []error{
		ErrInvalidAmount, ErrInvalidHandle, ErrEmptyDescription,
		ErrDescriptionTooLong, ErrEmptyNotePerson,
		ErrDuplicateParticipant, ErrPayerIsParticipant, ErrNoParticipants,
		ErrInvalidSplitMode, ErrCustomExceedsTotal, ErrMissingCustomAmount,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// ParseHandle validates and normalizes a user handle.
func ParseHandle(s string) (Handle, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", ErrInvalidHandle
	}
	at := strings.IndexByte(s, '@')
	if at <= 0 || at == len(s)-1 {
		return "", fmt.Errorf("%w: %q", ErrInvalidHandle, s)
	}
	if strings.ContainsAny(s, " \t\n") {
		return "", fmt.Errorf("%w: %q", ErrInvalidHandle, s)
	}
	return Handle(s), nil
}

func (h Handle) String() string { return string(h) }

func (h Handle) Validate() error {
	_, err := ParseHandle(string(h))
	return err
}

func (m SplitMode) Validate() error {
	switch m {
	case SplitEqual, SplitCustom:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidSplitMode, string(m))
	}
}

func (e Expense) Validate() error {
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return fmt.Errorf("%w (max 200 characters)", ErrDescriptionTooLong)
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if err := e.Payer.Validate(); err != nil {
		return fmt.Errorf("payer: %w", err)
	}
	if err := e.SplitMode.Validate(); err != nil {
		return err
	}
	seen := make(map[Handle]struct{}, len(e.Participants))
	for _, p := range e.Participants {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("participant: %w", err)
		}
		if p == e.Payer {
			return ErrPayerIsParticipant
		}
		if _, dup := seen[p]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateParticipant, p)
		}
		seen[p] = struct{}{}
	}
	var owed int64
	for _, ps := range e.PaymentStatus {
		owed += ps.Owed.Cents
	}
	if owed > e.Amount.Cents {
		return ErrCustomExceedsTotal
	}
	for _, n := range e.NonRoommateNotes {
		if err := n.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (n NonRoommateNote) Validate() error {
	if strings.TrimSpace(n.Person) == "" {
		return ErrEmptyNotePerson
	}
	if err := n.Amount.Validate(); err != nil {
		return fmt.Errorf("non-roommate note: %w", err)
	}
	return nil
}

// Share returns the payment-status entry for the given participant, or
// ErrNotFound if the participant has no entry on this expense.
func (e *Expense) Share(participant Handle) (*ParticipantShare, error) {
	for i := range e.PaymentStatus {
		if e.PaymentStatus[i].Participant == participant {
			return &e.PaymentStatus[i], nil
		}
	}
	return nil, fmt.Errorf("%w: no payment entry for %s on expense %s", ErrNotFound, participant, e.ID)
}

// MarkParticipantPaid flips a participant's entry to paid. The transition is
// strictly one-way: an already-paid entry returns ErrAlreadyPaid and nothing
// is mutated. Callers settle the ledger together with this call.
func (e *Expense) MarkParticipantPaid(participant Handle, notes string, now time.Time) (*ParticipantShare, error) {
	share, err := e.Share(participant)
	if err != nil {
		return nil, err
	}
	if share.IsPaid {
		return nil, fmt.Errorf("%w: %s on expense %s", ErrAlreadyPaid, participant, e.ID)
	}
	share.IsPaid = true
	share.PaidAt = now
	if notes != "" {
		share.Notes = notes
	}
	return share, nil
}

// MarkNotePaid flips a non-roommate note to paid by position. Notes never
// touch the balance ledger because the person is not a registered user, so
// re-marking a paid note is harmless and idempotent.
func (e *Expense) MarkNotePaid(index int, now time.Time) (*NonRoommateNote, error) {
	if index < 0 || index >= len(e.NonRoommateNotes) {
		return nil, fmt.Errorf("%w: note %d on expense %s", ErrNotFound, index, e.ID)
	}
	note := &e.NonRoommateNotes[index]
	if !note.IsPaid {
		note.IsPaid = true
		note.PaidAt = now
	}
	return note, nil
}
