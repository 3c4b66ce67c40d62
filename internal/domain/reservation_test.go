package domain

import (
	"errors"
	"testing"
)

func TestParseStatusFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Status
		wantErr bool
	}{
		{name: "valid lowercase", input: "confirmed", want: StatusConfirmed},
		{name: "valid uppercase with spaces", input: " CANCELLED ", want: StatusCancelled},
		{name: "approved is not canonical", input: "approved", wantErr: true},
		{name: "invalid", input: "unknown", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseStatusFromString(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseStatusFromString() error = %v, want ErrValidation", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseStatusFromString() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseStatusFromString() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseOutcomeKindFromString(t *testing.T) {
	t.Parallel()

	got, err := ParseOutcomeKindFromString(" Approval ")
	if err != nil {
		t.Fatalf("ParseOutcomeKindFromString() unexpected error = %v", err)
	}
	if got != KindApproval {
		t.Fatalf("ParseOutcomeKindFromString() = %s, want %s", got, KindApproval)
	}

	_, err = ParseOutcomeKindFromString("reminder")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseOutcomeKindFromString() error = %v, want ErrValidation", err)
	}
}

func TestOutcomeKindTriggerStatus(t *testing.T) {
	t.Parallel()

	if got := KindApproval.TriggerStatus(); got != StatusConfirmed {
		t.Fatalf("approval trigger = %s, want confirmed", got)
	}
	if got := KindCancellation.TriggerStatus(); got != StatusCancelled {
		t.Fatalf("cancellation trigger = %s, want cancelled", got)
	}
	if got := OutcomeKind("reminder").TriggerStatus(); got != "" {
		t.Fatalf("unknown kind trigger = %q, want empty", got)
	}
}

func TestReservationDispatchAndPhone(t *testing.T) {
	t.Parallel()

	id := "wamid.1"
	phone := "  0555 123 45 67 "
	r := &Reservation{
		ID:            "r1",
		CustomerPhone: &phone,
		Approval:      DispatchRecord{Sent: true, ProviderMessageID: &id},
	}

	if !r.Dispatch(KindApproval).Sent {
		t.Fatal("approval record should be sent")
	}
	if r.Dispatch(KindCancellation).Sent {
		t.Fatal("cancellation record should not be sent")
	}
	if got := r.Phone(); got != "0555 123 45 67" {
		t.Fatalf("Phone() = %q, want trimmed value", got)
	}

	var nilReservation *Reservation
	if nilReservation.Phone() != "" {
		t.Fatal("nil reservation phone should be empty")
	}
	if nilReservation.Dispatch(KindApproval).Sent {
		t.Fatal("nil reservation dispatch should be zero")
	}
}

func TestReservationValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		r       *Reservation
		wantErr bool
	}{
		{name: "valid", r: &Reservation{ID: "r1", Status: StatusPending}},
		{name: "empty status allowed", r: &Reservation{ID: "r1"}},
		{name: "nil", r: nil, wantErr: true},
		{name: "missing id", r: &Reservation{Status: StatusPending}, wantErr: true},
		{name: "invalid status", r: &Reservation{ID: "r1", Status: "approved"}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.r.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Validate() unexpected error = %v", err)
			}
		})
	}
}
