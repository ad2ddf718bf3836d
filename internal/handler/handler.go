package handler

import (
	"encoding/base64"
	"errors"
	"strconv"
	"time"

	"guessescrow/internal/address"
	"guessescrow/internal/auth"
	"guessescrow/internal/model"
	"guessescrow/internal/service"
	"guessescrow/pkg/response"
	"guessescrow/pkg/units"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	houseService      *service.HouseService
	gameService       *service.GameService
	settlementService *service.SettlementService
	walletService     *service.WalletService
	program           address.Address
	adminToken        string
	playTTL           time.Duration
	now               func() time.Time
	log               *zap.Logger
}

const defaultPlayTTL = 5 * time.Minute

func NewHandler(deps service.Dependencies) *Handler {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	playTTL := time.Duration(deps.Config.Server.PlayTTLSeconds) * time.Second
	if playTTL <= 0 {
		playTTL = defaultPlayTTL
	}
	return &Handler{
		houseService:      service.NewHouseService(deps),
		gameService:       service.NewGameService(deps),
		settlementService: service.NewSettlementService(deps),
		walletService:     service.NewWalletService(deps),
		program:           deps.Deriver.Program(),
		adminToken:        deps.Config.Server.AdminToken,
		playTTL:           playTTL,
		now:               time.Now,
		log:               log.Named("http"),
	}
}

// SignedRequest 写操作的公共字段
//
// 签名消息为 op|program_id|identity|request_id|字段...，见 auth.Message
type SignedRequest struct {
	Identity  string `json:"identity" binding:"required"`
	RequestID string `json:"request_id" binding:"required,max=64"`
	Signature string `json:"signature" binding:"required"`
}

// verify 校验签名，返回调用方身份；失败时已经写好响应
func (h *Handler) verify(c *gin.Context, op string, req SignedRequest, fields ...string) (address.Address, bool) {
	identity, err := address.Parse(req.Identity)
	if err != nil {
		response.ParamError(c, "identity 参数错误")
		return address.Address{}, false
	}
	msg := auth.Message(op, h.program, identity, req.RequestID, fields...)
	if err := auth.Verify(identity, msg, req.Signature); err != nil {
		response.Unauthorized(c, err.Error())
		return address.Address{}, false
	}
	return identity, true
}

// checkExpiry expires_at 必须晚于当前时间，且不能超过 playTTL
func (h *Handler) checkExpiry(c *gin.Context, expiresAt int64) bool {
	now := h.now()
	deadline := time.Unix(expiresAt, 0)
	if !now.Before(deadline) {
		response.Unauthorized(c, "签名已过期")
		return false
	}
	if deadline.Sub(now) > h.playTTL {
		response.ParamError(c, "expires_at 超出允许的有效期")
		return false
	}
	return true
}

var errorCodes = []struct {
	err  error
	code int
}{
	{service.ErrAuthorizationMismatch, response.CodeAuthorizationMismatch},
	{service.ErrAlreadySettled, response.CodeAlreadySettled},
	{service.ErrAlreadyInitialized, response.CodeAlreadyInitialized},
	{service.ErrAlreadyExists, response.CodeAlreadyExists},
	{service.ErrNotInitialized, response.CodeNotInitialized},
	{service.ErrOverflow, response.CodeOverflow},
	{service.ErrInvalidAmount, response.CodeInvalidAmount},
	{service.ErrInsufficientFunds, response.CodeInsufficientFunds},
	{service.ErrDuplicateRequest, response.CodeDuplicateRequest},
	{service.ErrCustodialAddress, response.CodeCustodialAddress},
	{service.ErrSystemBusy, response.CodeSystemBusy},
}

func (h *Handler) fail(c *gin.Context, err error) {
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			response.BusinessError(c, ec.code, err.Error())
			return
		}
	}
	h.log.Error("请求处理失败", zap.String("path", c.FullPath()), zap.Error(err))
	response.ServerError(c, "服务器内部错误")
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	return page, pageSize
}

// ============================================================
// 返回结构
// ============================================================

type HouseView struct {
	Address            string `json:"address"`
	RecordedBalance    uint64 `json:"recorded_balance"`
	RecordedBalanceSOL string `json:"recorded_balance_sol"`
	Bump               uint8  `json:"bump"`
	Data               string `json:"data"` // 链上布局的 base64
}

func newHouseView(house *model.HouseAccount) HouseView {
	return HouseView{
		Address:            house.Address,
		RecordedBalance:    house.RecordedBalance,
		RecordedBalanceSOL: units.ToSOL(house.RecordedBalance),
		Bump:               house.Bump,
		Data:               base64.StdEncoding.EncodeToString(service.EncodeHouse(house)),
	}
}

// GameView 结算之前不返回 committed_number，编码数据里也包含它，所以同样隐藏
type GameView struct {
	Address         string          `json:"address"`
	Owner           string          `json:"owner"`
	State           model.GameState `json:"state"`
	Settled         bool            `json:"settled"`
	Bump            uint8           `json:"bump"`
	CommittedNumber *uint64         `json:"committed_number,omitempty"`
	SettledAt       *time.Time      `json:"settled_at,omitempty"`
	Data            string          `json:"data,omitempty"`
}

func newGameView(game *model.GameRecord) GameView {
	view := GameView{
		Address:   game.Address,
		Owner:     game.Owner,
		State:     game.State(),
		Settled:   game.Settled,
		Bump:      game.Bump,
		SettledAt: game.SettledAt,
	}
	if game.Settled {
		committed := game.CommittedNumber
		view.CommittedNumber = &committed
		if data, err := service.EncodeGame(game); err == nil {
			view.Data = base64.StdEncoding.EncodeToString(data)
		}
	}
	return view
}

// ============================================================
// 庄家资金池
// ============================================================

type HouseAmountRequest struct {
	SignedRequest
	Amount uint64 `json:"amount"`
}

// OpenHouse 开设资金池
// POST /api/v1/house/open
func (h *Handler) OpenHouse(c *gin.Context) {
	var req HouseAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	caller, ok := h.verify(c, auth.OpOpenHouse, req.SignedRequest, formatUint(req.Amount))
	if !ok {
		return
	}

	house, err := h.houseService.Open(c.Request.Context(), caller, req.Amount, req.RequestID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, newHouseView(house))
}

// FundHouse 追加资金
// POST /api/v1/house/fund
func (h *Handler) FundHouse(c *gin.Context) {
	var req HouseAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	caller, ok := h.verify(c, auth.OpFundHouse, req.SignedRequest, formatUint(req.Amount))
	if !ok {
		return
	}

	house, err := h.houseService.Fund(c.Request.Context(), caller, req.Amount, req.RequestID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, newHouseView(house))
}

// WithdrawHouse 资金池提现，只有 house_authority 可以调用
// POST /api/v1/house/withdraw
func (h *Handler) WithdrawHouse(c *gin.Context) {
	var req HouseAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	caller, ok := h.verify(c, auth.OpWithdrawHouse, req.SignedRequest, formatUint(req.Amount))
	if !ok {
		return
	}

	house, err := h.houseService.Withdraw(c.Request.Context(), caller, req.Amount, req.RequestID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, newHouseView(house))
}

// GetHouse GET /api/v1/house
func (h *Handler) GetHouse(c *gin.Context) {
	house, err := h.houseService.Get(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, newHouseView(house))
}

// ============================================================
// 游戏记录
// ============================================================

type CreateGameRequest struct {
	SignedRequest
	CommittedNumber uint64 `json:"committed_number"`
}

// CreateGame 创建游戏记录
// POST /api/v1/game/create
func (h *Handler) CreateGame(c *gin.Context) {
	var req CreateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	caller, ok := h.verify(c, auth.OpCreateGame, req.SignedRequest, formatUint(req.CommittedNumber))
	if !ok {
		return
	}

	game, err := h.gameService.Create(c.Request.Context(), caller, req.CommittedNumber)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, newGameView(game))
}

// GetGame 按 owner 或 address 查询
// GET /api/v1/game?owner=xxx 或 ?address=xxx
func (h *Handler) GetGame(c *gin.Context) {
	var (
		game *model.GameRecord
		err  error
	)
	switch {
	case c.Query("address") != "":
		addr, perr := address.Parse(c.Query("address"))
		if perr != nil {
			response.ParamError(c, "address 参数错误")
			return
		}
		game, err = h.gameService.Get(c.Request.Context(), addr)
	case c.Query("owner") != "":
		owner, perr := address.Parse(c.Query("owner"))
		if perr != nil {
			response.ParamError(c, "owner 参数错误")
			return
		}
		game, err = h.gameService.GetByOwner(c.Request.Context(), owner)
	default:
		response.ParamError(c, "owner 和 address 不能同时为空")
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, newGameView(game))
}

type PlayRequest struct {
	SignedRequest
	Game      string `json:"game"` // 为空表示调用方自己的游戏
	Guess     uint64 `json:"guess"`
	Stake     uint64 `json:"stake"`
	ExpiresAt int64  `json:"expires_at" binding:"required"` // unix 秒
}

type PlayResponse struct {
	Outcome      model.Outcome `json:"outcome"`
	SettlementNo string        `json:"settlement_no"`
	Replayed     bool          `json:"replayed,omitempty"`
	House        HouseView     `json:"house"`
	Game         GameView      `json:"game"`
}

// Play 猜数字结算
// POST /api/v1/game/play
//
// 签名字段顺序：game|guess|stake|expires_at，game 为空时签名里也是空字符串。
// 失败的 play 不占用请求号，过期后同一份签名不能再被提交
func (h *Handler) Play(c *gin.Context) {
	var req PlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	var gameAddr address.Address
	if req.Game != "" {
		var err error
		if gameAddr, err = address.Parse(req.Game); err != nil {
			response.ParamError(c, "game 参数错误")
			return
		}
	}

	caller, ok := h.verify(c, auth.OpPlay, req.SignedRequest,
		req.Game, formatUint(req.Guess), formatUint(req.Stake), strconv.FormatInt(req.ExpiresAt, 10))
	if !ok {
		return
	}
	if !h.checkExpiry(c, req.ExpiresAt) {
		return
	}

	result, err := h.settlementService.Play(c.Request.Context(), &service.PlayRequest{
		Caller:    caller,
		Game:      gameAddr,
		Guess:     req.Guess,
		Stake:     req.Stake,
		RequestID: req.RequestID,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, PlayResponse{
		Outcome:      result.Outcome,
		SettlementNo: result.SettlementNo,
		Replayed:     result.Replayed,
		House:        newHouseView(result.House),
		Game:         newGameView(result.Game),
	})
}

// ListSettlements 结算历史
// GET /api/v1/game/settlements?owner=xxx&page=1&page_size=10
func (h *Handler) ListSettlements(c *gin.Context) {
	owner, err := address.Parse(c.Query("owner"))
	if err != nil {
		response.ParamError(c, "owner 参数错误")
		return
	}
	page, pageSize := pageParams(c)

	list, total, err := h.settlementService.ListSettlements(c.Request.Context(), owner, page, pageSize)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, response.PageData{List: list, Total: total, Page: page, PageSize: pageSize})
}

// ============================================================
// 钱包
// ============================================================

// GetBalance 查询余额
// GET /api/v1/wallet/balance?address=xxx
func (h *Handler) GetBalance(c *gin.Context) {
	addr, err := address.Parse(c.Query("address"))
	if err != nil {
		response.ParamError(c, "address 参数错误")
		return
	}

	balance, err := h.walletService.Balance(c.Request.Context(), addr)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{
		"address":     addr.String(),
		"balance":     balance,
		"balance_sol": units.ToSOL(balance),
	})
}

// GetJournal 钱包流水
// GET /api/v1/wallet/journal?address=xxx&page=1&page_size=10
func (h *Handler) GetJournal(c *gin.Context) {
	addr, err := address.Parse(c.Query("address"))
	if err != nil {
		response.ParamError(c, "address 参数错误")
		return
	}
	page, pageSize := pageParams(c)

	entries, total, err := h.walletService.Journal(c.Request.Context(), addr, page, pageSize)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, response.PageData{List: entries, Total: total, Page: page, PageSize: pageSize})
}

// AirdropRequest amount 和 amount_sol 二选一
type AirdropRequest struct {
	Address   string `json:"address" binding:"required"`
	Amount    uint64 `json:"amount"`
	AmountSOL string `json:"amount_sol"`
}

// Airdrop 测试水龙头，需要 X-Admin-Token
// POST /api/v1/wallet/airdrop
func (h *Handler) Airdrop(c *gin.Context) {
	if h.adminToken == "" {
		response.Error(c, response.CodeForbidden, "空投接口未开放")
		return
	}
	if c.GetHeader("X-Admin-Token") != h.adminToken {
		response.Unauthorized(c, "管理令牌错误")
		return
	}

	var req AirdropRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}
	addr, err := address.Parse(req.Address)
	if err != nil {
		response.ParamError(c, "address 参数错误")
		return
	}
	amount := req.Amount
	if req.AmountSOL != "" {
		if amount, err = units.ParseSOL(req.AmountSOL); err != nil {
			response.ParamError(c, "amount_sol 参数错误: "+err.Error())
			return
		}
	}

	change, err := h.walletService.Airdrop(c.Request.Context(), addr, amount)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{
		"address":        change.Address,
		"balance_before": change.Before,
		"balance":        change.After,
		"balance_sol":    units.ToSOL(change.After),
	})
}
