// Package activation holds the KYC activation profile domain model: one
// profile per user, built up across six ordered steps.
package activation

import "time"

// Status is the lifecycle state of an activation profile.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusRejected   Status = "rejected"
)

// Step bounds. CurrentStep never leaves this range.
const (
	MinStep = 1
	MaxStep = 6
)

// Reference is one family or character reference collected in step 2.
type Reference struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	Phone        string `json:"phone"`
}

// Profile is the per-user activation record. Each step group is nil until its
// step has been accepted, so populated-ness is visible without flag fields.
type Profile struct {
	UserID         string               `json:"userId"`
	Identity       *Step1Identity       `json:"identity,omitempty"`
	References     *Step2References     `json:"references,omitempty"`
	Residence      *Step3Residence      `json:"residence,omitempty"`
	Identification *Step4Identification `json:"identification,omitempty"`
	Banking        *Step5Banking        `json:"banking,omitempty"`
	Signature      *Step6Signature      `json:"signature,omitempty"`
	CurrentStep    int                  `json:"currentStep"`
	Status         Status               `json:"activationStatus"`
	CompletedAt    *time.Time           `json:"completedAt,omitempty"`
	CreatedAt      time.Time            `json:"createdAt"`
	UpdatedAt      time.Time            `json:"updatedAt"`
}

// StepPayload is the tagged union of the six step bodies. Stores and the
// validator dispatch on Step() rather than trusting a caller-supplied number
// against an untyped object.
type StepPayload interface {
	Step() int
}

// Step1Identity carries personal details and the terms agreement.
type Step1Identity struct {
	FullName      string `json:"fullName"`
	Gender        string `json:"gender"`
	DateOfBirth   string `json:"dateOfBirth"`
	MaritalStatus string `json:"maritalStatus"`
	Nationality   string `json:"nationality"`
	TermsAgreed   bool   `json:"termsAgreed"`
}

func (Step1Identity) Step() int { return 1 }

// Step2References carries the list of character references.
type Step2References struct {
	References []Reference `json:"references"`
}

func (Step2References) Step() int { return 2 }

// Step3Residence carries the residential address group.
type Step3Residence struct {
	Country string `json:"residingCountry"`
	Region  string `json:"region"`
	City    string `json:"city"`
}

func (Step3Residence) Step() int { return 3 }

// Step4Identification carries the government ID descriptor.
type Step4Identification struct {
	Type   string `json:"identificationType"`
	Number string `json:"identificationNumber"`
}

func (Step4Identification) Step() int { return 4 }

// Step5Banking carries the payout account details.
type Step5Banking struct {
	AccountType       string `json:"accountType"`
	BankName          string `json:"bankName"`
	AccountNumber     string `json:"accountNumber"`
	AccountHolderName string `json:"accountHolderName"`
}

func (Step5Banking) Step() int { return 5 }

// Step6Signature carries the opaque signature payload.
type Step6Signature struct {
	Signature string `json:"signature"`
}

func (Step6Signature) Step() int { return 6 }

// StepPopulated reports whether the field group for the given step has been
// accepted. Steps outside 1..6 are never populated.
func (p *Profile) StepPopulated(step int) bool {
	switch step {
	case 1:
		return p.Identity != nil
	case 2:
		return p.References != nil
	case 3:
		return p.Residence != nil
	case 4:
		return p.Identification != nil
	case 5:
		return p.Banking != nil
	case 6:
		return p.Signature != nil
	default:
		return false
	}
}

// PopulatedSteps counts accepted step groups.
func (p *Profile) PopulatedSteps() int {
	count := 0
	for step := MinStep; step <= MaxStep; step++ {
		if p.StepPopulated(step) {
			count++
		}
	}
	return count
}

// AllStepsPopulated reports whether every required step group is present.
func (p *Profile) AllStepsPopulated() bool {
	return p.PopulatedSteps() == MaxStep
}

// Progress expresses step completion as a whole percentage. Monotonic in the
// number of populated groups.
func (p *Profile) Progress() int {
	if p == nil {
		return 0
	}
	return p.PopulatedSteps() * 100 / MaxStep
}

// Clone returns a deep copy so in-memory stores never hand out aliased state.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Identity != nil {
		v := *p.Identity
		cp.Identity = &v
	}
	if p.References != nil {
		v := Step2References{References: append([]Reference(nil), p.References.References...)}
		cp.References = &v
	}
	if p.Residence != nil {
		v := *p.Residence
		cp.Residence = &v
	}
	if p.Identification != nil {
		v := *p.Identification
		cp.Identification = &v
	}
	if p.Banking != nil {
		v := *p.Banking
		cp.Banking = &v
	}
	if p.Signature != nil {
		v := *p.Signature
		cp.Signature = &v
	}
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// ApplyStep writes one step group onto the profile, overwriting only that
// group's fields.
func (p *Profile) ApplyStep(payload StepPayload) {
	switch v := payload.(type) {
	case Step1Identity:
		p.Identity = &v
	case *Step1Identity:
		cp := *v
		p.Identity = &cp
	case Step2References:
		p.References = &v
	case *Step2References:
		cp := *v
		p.References = &cp
	case Step3Residence:
		p.Residence = &v
	case *Step3Residence:
		cp := *v
		p.Residence = &cp
	case Step4Identification:
		p.Identification = &v
	case *Step4Identification:
		cp := *v
		p.Identification = &cp
	case Step5Banking:
		p.Banking = &v
	case *Step5Banking:
		cp := *v
		p.Banking = &cp
	case Step6Signature:
		p.Signature = &v
	case *Step6Signature:
		cp := *v
		p.Signature = &cp
	}
}
