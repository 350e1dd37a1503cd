package v1alpha1

import (
	"net/http"

	"github.com/paperlane/paperlane/api/v1alpha1"
	"github.com/paperlane/paperlane/internal/handlers/v1alpha1/mappers"
	"github.com/paperlane/paperlane/internal/service"
	"github.com/paperlane/paperlane/pkg/log"
)

// EngineHandler receives job notifications from the processing engine.
type EngineHandler struct {
	reconcileSrv *service.ReconcileService
}

func NewEngineHandler(reconcile *service.ReconcileService) *EngineHandler {
	return &EngineHandler{reconcileSrv: reconcile}
}

// (POST /api/v1/engine/callbacks)
func (h *EngineHandler) Callback(w http.ResponseWriter, r *http.Request) {
	var form v1alpha1.EngineCallback
	if err := decode(r, &form); err != nil {
		badRequest(w, r, err)
		return
	}

	logger := log.NewDebugLogger("engine_handler").WithContext(r.Context()).Operation("engine_callback").
		WithString("job_id", form.ID()).
		WithString("reported_state", form.State).
		Build()

	res, err := h.reconcileSrv.ReconcileJob(r.Context(), form.ID())
	if err != nil {
		logger.Error(err).Log()
		writeError(w, r, err)
		return
	}
	if res.EngineUnavailable {
		logger.Warn("engine unavailable while handling its own callback").Log()
	}

	logger.Success().WithString("status", string(res.Document.Status)).Log()
	respond(w, r, http.StatusOK, mappers.PollResultToApi(*res))
}
