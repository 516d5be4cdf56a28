package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/escala-game/escala-backend/internal/engine"
	"github.com/escala-game/escala-backend/internal/hub"
	"github.com/escala-game/escala-backend/internal/session"
	"github.com/escala-game/escala-backend/internal/store"
	"github.com/escala-game/escala-backend/pkg/types"
)

// Store is the read-side persistence surface the façade serves directly.
// All writes go through the session actors.
type Store interface {
	LoadGame(ctx context.Context, code string) (*engine.Game, error)
	AllGames(ctx context.Context) ([]*engine.Game, error)
	LoadPlayer(ctx context.Context, id string) (*engine.Player, error)
	PlayersByGame(ctx context.Context, code string) ([]*engine.Player, error)
	RecentMovements(ctx context.Context, limit int) ([]store.Movement, error)
	MovementsByGame(ctx context.Context, code string) ([]store.Movement, error)
	MovementsByPlayer(ctx context.Context, playerID string) ([]store.Movement, error)
	GameStats(ctx context.Context, code string) (*store.GameStats, error)
	MovementStats(ctx context.Context, code string) (*store.MovementStats, error)
}

type API struct {
	Hub   *hub.Hub
	Store Store
	Log   *zap.Logger
}

// GenerateCode builds a shareable game code: "G" plus six random digits.
func GenerateCode() (string, error) {
	const digits = "0123456789"
	code := make([]byte, 7)
	code[0] = 'G'
	for i := 1; i < len(code); i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(digits))))
		if err != nil {
			return "", err
		}
		code[i] = digits[n.Int64()]
	}
	return string(code), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch engine.KindOf(err) {
	case engine.KindNotFound:
		status = http.StatusNotFound
	case engine.KindConflict:
		status = http.StatusConflict
	case engine.KindValidation, engine.KindPrecondition:
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"message": err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return false
	}
	return true
}

func (a *API) sessionOr404(w http.ResponseWriter, code string) *session.Session {
	sess := a.Hub.Get(code)
	if sess == nil {
		writeError(w, engine.NotFound("game not found: "+code))
	}
	return sess
}

func (a *API) stateView(sess *session.Session) types.GameView {
	reply := make(chan session.View, 1)
	sess.Inbox() <- session.GetState{Reply: reply}
	v := <-reply
	return types.GameView{Game: v.Game, Players: v.Players}
}

func (a *API) CreateGame(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RoundDuration int `json:"roundDuration"`
	}
	if !decode(w, r, &body) {
		return
	}

	var code string
	for {
		c, err := GenerateCode()
		if err != nil {
			writeError(w, err)
			return
		}
		if _, err := a.Store.LoadGame(r.Context(), c); engine.KindOf(err) == engine.KindNotFound {
			code = c
			break
		}
		a.Log.Debug("game code collision, regenerating", zap.String("code", c))
	}

	reply := make(chan hub.CreateReply, 1)
	a.Hub.Inbox() <- hub.CreateGame{Code: code, RoundSeconds: body.RoundDuration, Reply: reply}
	res := <-reply
	if res.Err != nil {
		writeError(w, res.Err)
		return
	}
	writeJSON(w, http.StatusCreated, a.stateView(res.Sess))
}

func (a *API) ListGames(w http.ResponseWriter, r *http.Request) {
	games, err := a.Store.AllGames(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, games)
}

func (a *API) GetGame(w http.ResponseWriter, r *http.Request) {
	sess := a.sessionOr404(w, chi.URLParam(r, "code"))
	if sess == nil {
		return
	}
	writeJSON(w, http.StatusOK, a.stateView(sess))
}

func (a *API) StartGame(w http.ResponseWriter, r *http.Request) {
	sess := a.sessionOr404(w, chi.URLParam(r, "code"))
	if sess == nil {
		return
	}
	reply := make(chan error, 1)
	sess.Inbox() <- session.Start{Reply: reply}
	if err := <-reply; err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "game started"})
}

func (a *API) DeleteGame(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	sess := a.sessionOr404(w, code)
	if sess == nil {
		return
	}
	reply := make(chan error, 1)
	sess.Inbox() <- session.Delete{Reply: reply}
	if err := <-reply; err != nil {
		writeError(w, err)
		return
	}
	a.Hub.Inbox() <- hub.RemoveSession{Code: code}
	writeJSON(w, http.StatusOK, map[string]string{"message": "game deleted"})
}

func (a *API) GameStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.Store.GameStats(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) JoinGame(w http.ResponseWriter, r *http.Request) {
	var body struct {
		GameCode string `json:"gameCode"`
		Name     string `json:"name"`
		TeamID   int    `json:"teamId"`
	}
	if !decode(w, r, &body) {
		return
	}
	sess := a.sessionOr404(w, body.GameCode)
	if sess == nil {
		return
	}
	reply := make(chan session.JoinReply, 1)
	sess.Inbox() <- session.Join{Name: body.Name, TeamID: body.TeamID, Reply: reply}
	res := <-reply
	if res.Err != nil {
		writeError(w, res.Err)
		return
	}
	writeJSON(w, http.StatusCreated, res.Player)
}

func (a *API) GetPlayer(w http.ResponseWriter, r *http.Request) {
	player, err := a.Store.LoadPlayer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, player)
}

func (a *API) PlayersByGame(w http.ResponseWriter, r *http.Request) {
	players, err := a.Store.PlayersByGame(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, players)
}

func (a *API) ChangeTeam(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TeamID int `json:"teamId"`
	}
	if !decode(w, r, &body) {
		return
	}
	player, err := a.Store.LoadPlayer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	sess := a.sessionOr404(w, player.GameCode)
	if sess == nil {
		return
	}
	reply := make(chan error, 1)
	sess.Inbox() <- session.ChangeTeam{PlayerID: player.ID, TeamID: body.TeamID, Reply: reply}
	if err := <-reply; err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "team changed"})
}

func (a *API) PlaceMaterial(w http.ResponseWriter, r *http.Request) {
	var body struct {
		MaterialID  string             `json:"materialId"`
		BalanceType engine.BalanceType `json:"balanceType"`
		Side        engine.Side        `json:"side"`
	}
	if !decode(w, r, &body) {
		return
	}
	player, err := a.Store.LoadPlayer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	sess := a.sessionOr404(w, player.GameCode)
	if sess == nil {
		return
	}
	reply := make(chan session.PlaceReply, 1)
	sess.Inbox() <- session.PlaceMaterial{
		PlayerID:    player.ID,
		MaterialID:  body.MaterialID,
		BalanceType: body.BalanceType,
		Side:        body.Side,
		Reply:       reply,
	}
	res := <-reply
	if res.Err != nil {
		writeError(w, res.Err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "material placed",
		"material":    res.Material,
		"balanceType": body.BalanceType,
		"side":        body.Side,
		"isBalanced":  res.IsBalanced,
	})
}

func (a *API) MakeGuess(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Guesses []engine.Guess `json:"guesses"`
	}
	if !decode(w, r, &body) {
		return
	}
	player, err := a.Store.LoadPlayer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	sess := a.sessionOr404(w, player.GameCode)
	if sess == nil {
		return
	}
	reply := make(chan session.GuessReply, 1)
	sess.Inbox() <- session.MakeGuess{PlayerID: player.ID, Guesses: body.Guesses, Reply: reply}
	res := <-reply
	if res.Err != nil {
		writeError(w, res.Err)
		return
	}
	msg := "some guesses were incorrect"
	if res.AllCorrect {
		msg = "all guesses correct"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        msg,
		"guessResult":    res.AllCorrect,
		"guesses":        res.Results,
		"newPiecesTotal": res.Pieces,
		"gameState":      res.GameState,
	})
}

func (a *API) RecentMovements(w http.ResponseWriter, r *http.Request) {
	movements, err := a.Store.RecentMovements(r.Context(), 100)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, movements)
}

func (a *API) MovementsByGame(w http.ResponseWriter, r *http.Request) {
	movements, err := a.Store.MovementsByGame(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, movements)
}

func (a *API) MovementsByPlayer(w http.ResponseWriter, r *http.Request) {
	movements, err := a.Store.MovementsByPlayer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, movements)
}

func (a *API) MovementStats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.Store.MovementStats(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
