package stagerun

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// stageView is the JSON shape of one stage in introspection responses.
type stageView struct {
	Name      string `json:"name"`
	Frequency uint32 `json:"frequency"`
	Spare     bool   `json:"spare"`
}

type frequencyRequest struct {
	Frequency uint32 `json:"frequency"`
}

// newIntrospectionRouter serves the scheduler's live state over HTTP.
// Reads come from the Settings snapshot; mutations go through the normal
// command API, so they get the same eager validation and apply at the same
// synchronization point as commands issued by operations.
//
//	GET  /stages                  busy stages, in run order
//	GET  /stages/spare            parked stages
//	GET  /stages/{name}           one stage, busy or spare
//	PUT  /stages/{name}/frequency retune ({"frequency": n})
//	POST /quit                    request shutdown
func newIntrospectionRouter(settings *Settings) http.Handler {
	r := chi.NewRouter()

	r.Get("/stages", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, stageViews(settings.BusyStages(), false))
	})

	r.Get("/stages/spare", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, stageViews(settings.SpareStages(), true))
	})

	r.Get("/stages/{name}", func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "name")
		if stage := settings.BusyStage(name); stage != nil {
			writeJSON(w, http.StatusOK, stageView{Name: stage.Name(), Frequency: stage.Frequency()})
			return
		}
		if stage := settings.SpareStage(name); stage != nil {
			writeJSON(w, http.StatusOK, stageView{Name: stage.Name(), Frequency: stage.Frequency(), Spare: true})
			return
		}
		writeError(w, http.StatusNotFound, ErrStageNotFound)
	})

	r.Put("/stages/{name}/frequency", func(w http.ResponseWriter, req *http.Request) {
		var body frequencyRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		name := chi.URLParam(req, "name")
		if err := settings.SetFrequency(name, body.Frequency); err != nil {
			status := http.StatusConflict
			if errors.Is(err, ErrStageNotFound) {
				status = http.StatusNotFound
			}
			writeError(w, status, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	r.Post("/quit", func(w http.ResponseWriter, _ *http.Request) {
		settings.Quit()
		w.WriteHeader(http.StatusAccepted)
	})

	return r
}

func stageViews(stages []*Stage, spare bool) []stageView {
	views := make([]stageView, 0, len(stages))
	for _, stage := range stages {
		views = append(views, stageView{Name: stage.Name(), Frequency: stage.Frequency(), Spare: spare})
	}
	return views
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
