package mappers

import (
	"strings"

	"github.com/paperlane/paperlane/api/v1alpha1"
	"github.com/paperlane/paperlane/internal/service/mappers"
	"github.com/paperlane/paperlane/internal/store/model"
)

func DocumentFormApi(resource v1alpha1.DocumentCreate) mappers.DocumentForm {
	form := mappers.DocumentForm{
		FileName:     resource.FileName,
		FileRef:      resource.FileRef,
		ReferenceRef: resource.ReferenceRef,
	}
	if resource.Strategy != nil {
		form.Strategy = *resource.Strategy
	}
	return form
}

func ProfileFormApi(resource v1alpha1.ProfileCreate) mappers.ProfileForm {
	return mappers.ProfileForm{
		FullName:    resource.FullName,
		Phone:       resource.Phone,
		Address:     resource.Address,
		City:        resource.City,
		Institution: resource.Institution,
		Purpose:     resource.Purpose,
	}
}

func PaymentFormApi(resource v1alpha1.PaymentCreate) mappers.PaymentForm {
	return mappers.PaymentForm{
		PackageCode:     resource.PackageCode,
		Amount:          resource.Amount,
		Method:          resource.Method,
		PayerName:       resource.PayerName,
		ProofRef:        resource.ProofRef,
		TransactionDate: resource.TransactionDate,
	}
}

func DecisionFormApi(resource v1alpha1.PaymentDecision) mappers.DecisionForm {
	return mappers.DecisionForm{
		Decision: mappers.Decision(resource.Decision),
		Reason:   resource.Reason,
		Notes:    resource.Notes,
	}
}

// JobFilterApi reads the admin job monitor query: a comma separated status list and an owner.
func JobFilterApi(statuses string, ownerID string, limit int) mappers.JobFilter {
	filter := mappers.JobFilter{OwnerID: ownerID, Limit: limit}
	for _, s := range strings.Split(statuses, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		filter.Statuses = append(filter.Statuses, model.DocumentStatus(s))
	}
	return filter
}
