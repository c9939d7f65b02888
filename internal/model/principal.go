package model

import "fmt"

// PrincipalKind names the account collection a principal lives in.
type PrincipalKind string

const (
	KindEmployee PrincipalKind = "employee"
	KindPM       PrincipalKind = "pm"
	KindClient   PrincipalKind = "client"
	KindAdmin    PrincipalKind = "admin"
)

func ParsePrincipalKind(s string) (PrincipalKind, error) {
	switch k := PrincipalKind(s); k {
	case KindEmployee, KindPM, KindClient, KindAdmin:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown principal kind %q", ErrInvalid, s)
}

type PrincipalRef struct {
	Kind PrincipalKind `json:"kind"`
	ID   int           `json:"id"`
}

func (r PrincipalRef) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// Principal is a resolved PrincipalRef.
type Principal struct {
	Ref        PrincipalRef `json:"ref"`
	Name       string       `json:"name"`
	IsActive   bool         `json:"is_active"`
	IsTeamLead bool         `json:"is_team_lead"`
}
