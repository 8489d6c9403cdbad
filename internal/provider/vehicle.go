package provider

import (
	"context"
	"log/slog"
	"net/http"

	"infolookup/internal"
	"infolookup/internal/config"
	"infolookup/internal/util"
)

const vehicleNotFound = "No vehicle record found."

// VehicleAdapter looks up registration records by registration number and category.
type VehicleAdapter struct {
	client   *Client
	endpoint string
	log      *slog.Logger
}

func NewVehicleAdapter(client *Client, cfg config.Config, log *slog.Logger) *VehicleAdapter {
	if log == nil {
		log = slog.Default()
	}
	return &VehicleAdapter{
		client:   client,
		endpoint: cfg.VehicleAPIURL,
		log:      log.With("provider", "vehicle"),
	}
}

func (a *VehicleAdapter) Lookup(ctx context.Context, q internal.LookupQuery) internal.Outcome {
	if q.RegistrationNumber == "" || q.Category == "" {
		return internal.NewInvalidFormat()
	}

	env, err := a.client.Get(ctx, a.endpoint, map[string]string{
		"reg_no":   q.RegistrationNumber,
		"category": string(q.Category),
	}, nil)
	if err != nil {
		a.log.Warn("vehicle lookup transport failure", "reg_no", q.RegistrationNumber, "reason", ReasonOf(err), "err", err)
		return internal.NewTransportFailure(err)
	}

	parsed, err := Validate(env, http.StatusOK)
	if err != nil {
		a.log.Warn("vehicle lookup rejected response", "reg_no", q.RegistrationNumber, "status", env.StatusCode, "reason", ReasonOf(err))
		return internal.NewTransportFailure(err)
	}
	return decodeVehicle(parsed)
}

// decodeVehicle treats statusCode 0 with a non-empty data array as success and uses the
// first entry.
func decodeVehicle(parsed any) internal.Outcome {
	m, ok := parsed.(map[string]any)
	if !ok {
		return internal.NewProviderError(unexpectedFormat)
	}

	code, ok := toInt(m["statusCode"])
	if !ok {
		if msg := errorMessage(m); msg != "" {
			return internal.NewProviderError(msg)
		}
		return internal.NewProviderError(unexpectedFormat)
	}
	if code != 0 {
		msg := errorMessage(m)
		if msg == "" {
			msg = stringField(m, "message")
		}
		if msg == "" {
			return internal.NewNotFound(vehicleNotFound)
		}
		return internal.NewProviderError(msg)
	}

	switch data := m["data"].(type) {
	case nil:
		return internal.NewNotFound(vehicleNotFound)
	case []any:
		for _, e := range data {
			if rec, ok := e.(map[string]any); ok {
				return internal.NewFound(vehicleRecord(rec))
			}
		}
		if len(data) == 0 {
			return internal.NewNotFound(vehicleNotFound)
		}
		return internal.NewProviderError(unexpectedFormat)
	case map[string]any:
		return internal.NewFound(vehicleRecord(data))
	default:
		return internal.NewProviderError(unexpectedFormat)
	}
}

func vehicleRecord(m map[string]any) internal.VehicleRecord {
	return internal.VehicleRecord{
		RegistrationNumber: stringField(m, "registrationNumber"),
		OwnerName:          stringField(m, "ownerName"),
		OwnerCNIC:          stringField(m, "ownerCNIC"),
		Model:              util.JoinNonEmpty(stringField(m, "manufacturerName"), stringField(m, "modelName")),
		ModelYear:          stringField(m, "modelYear"),
		Color:              stringField(m, "color"),
		EngineNumber:       stringField(m, "engineNumber"),
		ChassisNumber:      stringField(m, "chassisNumber"),
		RegistrationDate:   stringField(m, "registrationDate"),
		CPLCStatus:         stringField(m, "cplcStatus"),
		District:           stringField(m, "districtName"),
		Branch:             stringField(m, "branchName"),
	}
}
