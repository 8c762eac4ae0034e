package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/studyledger/internal/notify"
	"github.com/MarkoPoloResearchLab/studyledger/pkg/ledger"
	"github.com/MarkoPoloResearchLab/studyledger/pkg/rewards"
	"github.com/MarkoPoloResearchLab/studyledger/pkg/study"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type httpHandler struct {
	logger   *zap.Logger
	services Services
	cfg      Config
}

func (handler *httpHandler) handlePresence(ctx *gin.Context) {
	var request presenceRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	userID, err := ledger.NewUserID(request.UserID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	event := study.PresenceEvent{UserID: userID, New: request.New.voiceState()}
	if request.Old != nil {
		old := request.Old.voiceState()
		event.Old = &old
	}
	// A session leaving the registry must settle even if the client goes away.
	outcome, err := handler.services.Tracker.HandlePresence(context.WithoutCancel(ctx.Request.Context()), event)
	if err != nil {
		handler.logger.Error("presence settlement failed", zap.String("user_id", userID.String()), zap.Error(err))
		handler.respondError(ctx, err)
		return
	}
	response := gin.H{"transition": outcome.Transition.String(), "settled": outcome.Settled}
	if outcome.Settled {
		response["result"] = notify.NewResultPayload(outcome.Result)
	}
	ctx.JSON(http.StatusOK, response)
}

func (handler *httpHandler) handleSession(ctx *gin.Context) {
	userID, ok := handler.userParam(ctx)
	if !ok {
		return
	}
	snapshot, found := handler.services.Tracker.Active(userID)
	if !found {
		ctx.JSON(http.StatusNotFound, errorResponse("no_active_session", "user is not studying"))
		return
	}
	ctx.JSON(http.StatusOK, sessionPayload{
		UserID:             snapshot.UserID.String(),
		StartUnixUTC:       snapshot.Start.Unix(),
		ElapsedSeconds:     seconds(snapshot.Elapsed),
		VideoLengthSeconds: seconds(snapshot.VideoLength),
		BreakLengthSeconds: seconds(snapshot.BreakLength),
		VideoRunning:       snapshot.VideoRunning,
		OnBreak:            snapshot.OnBreak,
	})
}

func (handler *httpHandler) handleBreak(ctx *gin.Context) {
	userID, ok := handler.userParam(ctx)
	if !ok {
		return
	}
	var request breakRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	if err := handler.services.Tracker.SetBreak(userID, request.OnBreak); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"user_id": userID.String(), "on_break": request.OnBreak})
}

func (handler *httpHandler) handleStanding(ctx *gin.Context) {
	userID, ok := handler.userParam(ctx)
	if !ok {
		return
	}
	requestCtx, cancel := handler.readContext(ctx)
	defer cancel()
	streak, rank, err := handler.services.Engine.Standing(requestCtx, userID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"user_id": userID.String(), "streak": streak, "rank": rank})
}

func (handler *httpHandler) handleBalance(ctx *gin.Context) {
	userID, ok := handler.userParam(ctx)
	if !ok {
		return
	}
	requestCtx, cancel := handler.readContext(ctx)
	defer cancel()
	balance, err := handler.services.Ledger.Balance(requestCtx, userID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"user_id": userID.String(), "balance": balance.Int64()})
}

func (handler *httpHandler) handleTransactions(ctx *gin.Context) {
	userID, ok := handler.userParam(ctx)
	if !ok {
		return
	}
	before, err := queryInt64(ctx, "before", 0)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_query", "before must be a unix timestamp"))
		return
	}
	limit, err := queryInt64(ctx, "limit", defaultHistoryLimit)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_query", "limit must be an integer"))
		return
	}
	requestCtx, cancel := handler.readContext(ctx)
	defer cancel()
	transactions, err := handler.services.Ledger.ListTransactions(requestCtx, userID, before, int(limit))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	entries := make([]transactionPayload, 0, len(transactions))
	for _, transaction := range transactions {
		entries = append(entries, transactionPayload{
			TransactionID:  transaction.TransactionID.String(),
			Amount:         transaction.Amount.Int64(),
			Reason:         transaction.Reason,
			CreatedUnixUTC: transaction.CreatedUnixUTC,
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"user_id": userID.String(), "transactions": entries})
}

func (handler *httpHandler) handleReward(ctx *gin.Context) {
	userID, ok := handler.userParam(ctx)
	if !ok {
		return
	}
	rewardID, err := rewards.NewRewardID(ctx.Param("reward_id"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	requestCtx, cancel := handler.readContext(ctx)
	defer cancel()
	claimed, err := handler.services.Rewards.Reveal(requestCtx, userID, rewardID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"reward_id":        claimed.RewardID.String(),
		"kind":             string(claimed.Kind),
		"description":      claimed.Description,
		"reason":           claimed.Reason,
		"created_unix_utc": claimed.CreatedUnixUTC,
	})
}

func (handler *httpHandler) handleBoosters(ctx *gin.Context) {
	userID, ok := handler.userParam(ctx)
	if !ok {
		return
	}
	requestCtx, cancel := handler.readContext(ctx)
	defer cancel()
	boosters, err := handler.services.Rewards.ActiveBoosters(requestCtx, userID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	payloads := make([]boosterPayload, 0, len(boosters))
	for _, booster := range boosters {
		payloads = append(payloads, boosterPayload{
			MultiplierPercent: booster.MultiplierPercent,
			ExpiresUnixUTC:    booster.ExpiresUnixUTC,
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"user_id": userID.String(), "boosters": payloads})
}

func (handler *httpHandler) handleResultsMode(ctx *gin.Context) {
	userID, ok := handler.userParam(ctx)
	if !ok {
		return
	}
	var request resultsModeRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	mode, err := study.ParseResultsMode(request.Mode)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	if err := handler.services.Engine.SetResultsMode(ctx.Request.Context(), userID, mode); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"user_id": userID.String(), "mode": string(mode)})
}

func (handler *httpHandler) handleLeaderboardOptOut(ctx *gin.Context) {
	userID, ok := handler.userParam(ctx)
	if !ok {
		return
	}
	var request optOutRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	if err := handler.services.Engine.SetLeaderboardOptOut(ctx.Request.Context(), userID, request.OptOut); err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"user_id": userID.String(), "opt_out": request.OptOut})
}

func (handler *httpHandler) handleLeaderboard(ctx *gin.Context) {
	limit, err := queryInt64(ctx, "limit", defaultLeaderboardTop)
	if err != nil || limit <= 0 || limit > maxLeaderboardTop {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_query", "limit must be between 1 and 100"))
		return
	}
	requestCtx, cancel := handler.readContext(ctx)
	defer cancel()
	standings, err := handler.services.Engine.Leaderboard(requestCtx, int(limit))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	rows := make([]standingPayload, 0, len(standings))
	for _, standing := range standings {
		rows = append(rows, standingPayload{
			Rank:         standing.Rank,
			UserID:       standing.UserID.String(),
			TotalSeconds: seconds(standing.Total),
		})
	}
	ctx.JSON(http.StatusOK, gin.H{"standings": rows})
}

func (handler *httpHandler) handleSimulate(ctx *gin.Context) {
	var request simulateRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	userID, err := ledger.NewUserID(request.UserID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	result, err := handler.services.Engine.SimulateSession(
		context.WithoutCancel(ctx.Request.Context()),
		userID,
		time.Duration(request.LengthSeconds)*time.Second,
		time.Duration(request.VideoSeconds)*time.Second,
		request.Notify,
	)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	handler.logger.Info("session simulated",
		zap.String("admin", ctx.GetString(adminSubjectContext)),
		zap.String("user_id", userID.String()),
		zap.String("session_id", result.SessionID.String()),
	)
	ctx.JSON(http.StatusOK, gin.H{"result": notify.NewResultPayload(result)})
}

func (handler *httpHandler) handleDeduct(ctx *gin.Context) {
	sessionID, err := study.NewSessionID(ctx.Param("session_id"))
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	var request deductRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	userID, err := ledger.NewUserID(request.UserID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	err = handler.services.Engine.DeductSession(
		ctx.Request.Context(),
		userID,
		sessionID,
		time.Duration(request.KeepLengthSeconds)*time.Second,
		time.Duration(request.KeepVideoSeconds)*time.Second,
	)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	handler.logger.Info("session deducted",
		zap.String("admin", ctx.GetString(adminSubjectContext)),
		zap.String("user_id", userID.String()),
		zap.String("session_id", sessionID.String()),
	)
	ctx.JSON(http.StatusOK, gin.H{
		"session_id":          sessionID.String(),
		"deleted":             request.KeepLengthSeconds == 0,
		"keep_length_seconds": request.KeepLengthSeconds,
		"keep_video_seconds":  request.KeepVideoSeconds,
	})
}

func (handler *httpHandler) handleAdjustCoins(ctx *gin.Context) {
	userID, ok := handler.userParam(ctx)
	if !ok {
		return
	}
	var request adjustCoinsRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, errorResponse("invalid_payload", "expected JSON body"))
		return
	}
	reason := strings.TrimSpace(request.Reason)
	if reason == "" {
		reason = ledger.ReasonAdjustment
	}
	transactionID, err := handler.services.Ledger.Append(ctx.Request.Context(), userID, ledger.Coins(request.Amount), reason)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	balance, err := handler.services.Ledger.Balance(ctx.Request.Context(), userID)
	if err != nil {
		handler.respondError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"transaction_id": transactionID.String(),
		"user_id":        userID.String(),
		"balance":        balance.Int64(),
	})
}

func (handler *httpHandler) userParam(ctx *gin.Context) (ledger.UserID, bool) {
	userID, err := ledger.NewUserID(ctx.Param("user_id"))
	if err != nil {
		handler.respondError(ctx, err)
		return ledger.UserID{}, false
	}
	return userID, true
}

func (handler *httpHandler) readContext(ctx *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx.Request.Context(), handler.cfg.RequestTimeout)
}

func (handler *httpHandler) respondError(ctx *gin.Context, err error) {
	status, code := classifyError(err)
	if status >= http.StatusInternalServerError {
		handler.logger.Error("request failed", zap.String("path", ctx.FullPath()), zap.Error(err))
		ctx.JSON(status, errorResponse(code, "storage unavailable"))
		return
	}
	ctx.JSON(status, errorResponse(code, err.Error()))
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusConflict, "insufficient_funds"
	case errors.Is(err, study.ErrInvalidSimulationInput):
		return http.StatusBadRequest, "invalid_simulation_input"
	case errors.Is(err, study.ErrMissingActiveSession):
		return http.StatusNotFound, "no_active_session"
	case errors.Is(err, study.ErrUnknownSession):
		return http.StatusNotFound, "unknown_session"
	case errors.Is(err, rewards.ErrUnknownReward):
		return http.StatusNotFound, "unknown_reward"
	case errors.Is(err, ledger.ErrInvalidUserID),
		errors.Is(err, ledger.ErrInvalidReason),
		errors.Is(err, ledger.ErrInvalidListLimit),
		errors.Is(err, study.ErrInvalidSessionID),
		errors.Is(err, study.ErrInvalidResultsMode),
		errors.Is(err, rewards.ErrInvalidRewardID):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusBadGateway, "store_error"
	}
}

func queryInt64(ctx *gin.Context, name string, fallback int64) (int64, error) {
	raw := strings.TrimSpace(ctx.Query(name))
	if raw == "" {
		return fallback, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func seconds(duration time.Duration) int64 {
	return int64(duration / time.Second)
}

func errorResponse(code string, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}
