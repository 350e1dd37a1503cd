package mappers

import (
	api "github.com/paperlane/paperlane/api/v1alpha1"
	"github.com/paperlane/paperlane/internal/service"
	"github.com/paperlane/paperlane/internal/store/model"
	"github.com/thoas/go-funk"
)

func DocumentToApi(doc model.Document) api.Document {
	return api.Document{
		Id:              doc.ID,
		OwnerId:         doc.OwnerID,
		FileName:        doc.FileName,
		Status:          string(doc.Status),
		Strategy:        doc.Strategy,
		JobId:           doc.ExternalJobID,
		ProgressPercent: doc.ProgressPercent,
		ProgressMessage: doc.ProgressMessage,
		ErrorDetail:     doc.ErrorDetail,
		Attempts:        doc.Attempts,
		JobStartedAt:    doc.JobStartedAt,
		JobCompletedAt:  doc.JobCompletedAt,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}
}

func DocumentListToApi(docs model.DocumentList) api.DocumentList {
	if len(docs) == 0 {
		return api.DocumentList{}
	}
	return funk.Map(docs, DocumentToApi).([]api.Document)
}

func ResultToApi(result model.ProcessingResult) api.ProcessingResult {
	return api.ProcessingResult{
		Id:                    result.ID,
		JobId:                 result.ExternalJobID,
		Status:                string(result.Status),
		Strategy:              result.StrategyName,
		OutputArtifactRef:     result.OutputArtifactRef,
		FlagsRemoved:          result.FlagsRemoved,
		SuccessRate:           result.SuccessRate,
		ProcessingTimeSeconds: result.ProcessingTimeSeconds,
		FileSize:              result.FileSize,
		ErrorDetail:           result.ErrorDetail,
		CompletedAt:           result.CompletedAt,
	}
}

func PollResultToApi(res service.PollResult) api.ProcessStatus {
	status := api.ProcessStatus{
		Document:          DocumentToApi(res.Document),
		EngineState:       string(res.EngineState),
		EngineUnavailable: res.EngineUnavailable,
	}
	if res.Result != nil {
		result := ResultToApi(*res.Result)
		status.Result = &result
	}
	return status
}

func AccountToApi(account model.Account) api.Account {
	return api.Account{
		Id:              account.ID,
		OwnerId:         account.OwnerID,
		Status:          string(account.Status),
		IsActive:        account.IsActive,
		SuspendedReason: account.SuspendedReason,
		CreatedAt:       account.CreatedAt,
		UpdatedAt:       account.UpdatedAt,
	}
}

func ProfileToApi(profile model.Profile) api.Profile {
	return api.Profile{
		FullName:    profile.FullName,
		Phone:       profile.Phone,
		Address:     profile.Address,
		City:        profile.City,
		Institution: profile.Institution,
		Purpose:     profile.Purpose,
	}
}

func PackageToApi(pkg model.Package) api.Package {
	return api.Package{
		Id:           pkg.ID,
		Code:         pkg.Code,
		Name:         pkg.Name,
		Price:        pkg.Price,
		ValidityDays: pkg.ValidityDays,
	}
}

func PackageListToApi(packages model.PackageList) api.PackageList {
	if len(packages) == 0 {
		return api.PackageList{}
	}
	return funk.Map(packages, PackageToApi).([]api.Package)
}

func SubscriptionToApi(sub model.Subscription) api.Subscription {
	return api.Subscription{
		Id:        sub.ID,
		Status:    string(sub.Status),
		StartDate: sub.StartDate,
		EndDate:   sub.EndDate,
	}
}

func PaymentProofToApi(proof model.PaymentProof) api.PaymentProof {
	return api.PaymentProof{
		Id:              proof.ID,
		AccountId:       proof.AccountID,
		SubscriptionId:  proof.SubscriptionID,
		Status:          string(proof.Status),
		Amount:          proof.Amount,
		Method:          proof.Method,
		PayerName:       proof.PayerName,
		ProofRef:        proof.ProofRef,
		TransactionDate: proof.TransactionDate,
		SubmittedAt:     proof.SubmittedAt,
		DecidedAt:       proof.DecidedAt,
		DecidedBy:       proof.DecidedBy,
		RejectionReason: proof.RejectionReason,
		AdminNotes:      proof.AdminNotes,
	}
}

func AccountStatusToApi(status service.AccountStatus) api.AccountStatus {
	out := api.AccountStatus{
		Account:  AccountToApi(status.Account),
		Active:   status.Active,
		NextStep: string(status.NextStep),
	}
	if status.Profile != nil {
		profile := ProfileToApi(*status.Profile)
		out.Profile = &profile
	}
	if status.Subscription != nil {
		sub := SubscriptionToApi(*status.Subscription)
		out.Subscription = &sub
	}
	if status.Package != nil {
		pkg := PackageToApi(*status.Package)
		out.Package = &pkg
	}
	if status.PendingProof != nil {
		proof := PaymentProofToApi(*status.PendingProof)
		out.PendingPayment = &proof
	}
	return out
}

func PaymentReviewListToApi(reviews []service.PaymentReview) api.PaymentReviewList {
	out := make(api.PaymentReviewList, 0, len(reviews))
	for _, r := range reviews {
		review := api.PaymentReview{
			Proof:   PaymentProofToApi(r.Proof),
			Account: AccountToApi(r.Account),
		}
		if r.Profile != nil {
			profile := ProfileToApi(*r.Profile)
			review.Profile = &profile
		}
		if r.Package != nil {
			pkg := PackageToApi(*r.Package)
			review.Package = &pkg
		}
		out = append(out, review)
	}
	return out
}
