package validation

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// Validation constants
	MaxSourceIDLength = 64
	MinScenarios      = 1
	MaxScenarios      = 1_000_000

	// sourceIDPattern matches the bus/branch/gen/load SourceID strings a
	// file parser hands the Topology builder — alphanumeric plus the
	// separators real utility naming conventions use.
	sourceIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.\-]+$`)
)

func init() {
	validate = validator.New()
}

// BusRequest is a single bus record on its way into topology.Builder.
type BusRequest struct {
	SourceID  string  `json:"sourceId" validate:"required,max=64"`
	BaseKV    float64 `json:"baseKv" validate:"gt=0"`
	VMin      float64 `json:"vMin" validate:"gt=0"`
	VMax      float64 `json:"vMax" validate:"gtfield=VMin"`
	VoltagePU float64 `json:"voltagePu" validate:"omitempty,gt=0"`
}

// BranchRequest is a single line or transformer record.
type BranchRequest struct {
	SourceID string  `json:"sourceId" validate:"required,max=64"`
	From     string  `json:"from" validate:"required"`
	To       string  `json:"to" validate:"required"`
	R        float64 `json:"r" validate:"min=0"`
	X        float64 `json:"x" validate:"required"`
	Tap      float64 `json:"tap" validate:"omitempty,gt=0"`
	RateAMVA float64 `json:"rateAMva" validate:"omitempty,gt=0"`
}

// GenRequest is a single generator record.
type GenRequest struct {
	SourceID string  `json:"sourceId" validate:"required,max=64"`
	Bus      string  `json:"bus" validate:"required"`
	PMin     float64 `json:"pMin"`
	PMax     float64 `json:"pMax" validate:"gtefield=PMin"`
	QMin     float64 `json:"qMin"`
	QMax     float64 `json:"qMax" validate:"gtefield=QMin"`
}

// LoadRequest is a single load record.
type LoadRequest struct {
	SourceID string  `json:"sourceId" validate:"required,max=64"`
	Bus      string  `json:"bus" validate:"required"`
	PMW      float64 `json:"pMw"`
	QMVAR    float64 `json:"qMvar"`
}

// ReliabilityRequest parameterizes a Monte Carlo reliability run.
type ReliabilityRequest struct {
	Seed              uint64  `json:"seed"`
	NumScenarios      int     `json:"numScenarios" validate:"required,min=1,max=1000000"`
	GenFailureRate    float64 `json:"genFailureRate" validate:"gte=0,lte=1"`
	BranchFailureRate float64 `json:"branchFailureRate" validate:"gte=0,lte=1"`
	DemandMin         float64 `json:"demandMin" validate:"omitempty,gt=0"`
	DemandMax         float64 `json:"demandMax" validate:"omitempty,gtefield=DemandMin"`
	Workers           int     `json:"workers" validate:"gte=0"`
}

// ValidateBusRequest validates a bus ingestion record.
func ValidateBusRequest(req *BusRequest) error {
	if req == nil {
		return errors.New("bus request cannot be nil")
	}
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}
	return ValidateSourceID(req.SourceID)
}

// ValidateBranchRequest validates a branch ingestion record.
func ValidateBranchRequest(req *BranchRequest) error {
	if req == nil {
		return errors.New("branch request cannot be nil")
	}
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}
	if req.From == req.To {
		return fmt.Errorf("branch %s: from and to bus must differ (no self-loop branches)", req.SourceID)
	}
	return ValidateSourceID(req.SourceID)
}

// ValidateGenRequest validates a generator ingestion record.
func ValidateGenRequest(req *GenRequest) error {
	if req == nil {
		return errors.New("gen request cannot be nil")
	}
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}
	return ValidateSourceID(req.SourceID)
}

// ValidateLoadRequest validates a load ingestion record.
func ValidateLoadRequest(req *LoadRequest) error {
	if req == nil {
		return errors.New("load request cannot be nil")
	}
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}
	return ValidateSourceID(req.SourceID)
}

// ValidateReliabilityRequest validates a Monte Carlo reliability run
// request before it's handed to the Outage Scenario Generator.
func ValidateReliabilityRequest(req *ReliabilityRequest) error {
	if req == nil {
		return errors.New("reliability request cannot be nil")
	}
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}
	if req.DemandMax != 0 && req.DemandMin == 0 {
		return errors.New("demandMax set without demandMin: both bounds of the demand scale range must be given together")
	}
	return nil
}

// ValidateSourceID validates an element's SourceID field, the handle a
// file parser carries through to downstream error messages.
func ValidateSourceID(id string) error {
	if id == "" {
		return errors.New("sourceId cannot be empty")
	}
	if len(id) > MaxSourceIDLength {
		return fmt.Errorf("sourceId %q exceeds maximum length of %d characters", id, MaxSourceIDLength)
	}
	if !sourceIDPattern.MatchString(id) {
		return fmt.Errorf("sourceId %q contains invalid characters (only alphanumeric, '_', '.', '-' allowed)", id)
	}
	return nil
}

// formatValidationError converts validator errors to a more user-friendly format.
func formatValidationError(err error) error {
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	for _, e := range validationErrs {
		field := e.Field()
		tag := e.Tag()
		param := e.Param()

		switch tag {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "min":
			return fmt.Errorf("%s: must be at least %s", field, param)
		case "max":
			return fmt.Errorf("%s: must not exceed %s", field, param)
		case "gt":
			return fmt.Errorf("%s: must be greater than %s", field, param)
		case "gte":
			return fmt.Errorf("%s: must be at least %s", field, param)
		case "lte":
			return fmt.Errorf("%s: must not exceed %s", field, param)
		case "gtfield":
			return fmt.Errorf("%s: must be greater than %s", field, param)
		case "gtefield":
			return fmt.Errorf("%s: must be at least %s", field, param)
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, tag)
		}
	}

	return err
}
