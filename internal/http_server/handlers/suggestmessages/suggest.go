package suggestMessages

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	resp "mysterymsg/internal/lib/api/response"
	sl "mysterymsg/internal/lib/logger"
	"mysterymsg/internal/suggest"
)

type Response struct {
	resp.Response
	Suggestions []string `json:"suggestions"`
}

// Generator produces a delimiter-joined completion of candidate questions.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// New asks the completion service for question suggestions. A collaborator
// failure degrades to the canned starter questions instead of erroring out.
func New(
	log *slog.Logger,
	gen Generator,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.suggestMessages.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		completion, err := gen.Generate(r.Context(), suggest.DefaultPrompt)
		if err != nil {
			log.Warn("suggestion service unavailable, using starter questions", sl.Err(err))

			completion = suggest.StarterQuestions
		}

		render.JSON(w, r, Response{
			Response:    resp.OK(),
			Suggestions: suggest.Parse(completion),
		})
	}
}
