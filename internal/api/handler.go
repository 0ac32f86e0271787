package api

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/rongwang/ledger-server/internal/models"
	"github.com/rongwang/ledger-server/internal/service"
)

// Handler serves the ledger over HTTP
type Handler struct {
	svc service.Service
}

// NewHandler creates a new Handler
func NewHandler(svc service.Service) *Handler {
	return &Handler{svc: svc}
}

// SetupRoutes registers every route on router
func (h *Handler) SetupRoutes(router *gin.Engine) {
	auth := PasswordMiddleware(h.svc)

	router.GET("/", h.index)

	router.GET("/users", h.listUsers)
	router.PUT("/user/:username", h.createUser)
	router.GET("/user/:username", auth, h.getUser)
	router.POST("/user/:username", auth, h.updatePassword)
	router.DELETE("/user/:username", auth, h.deleteUser)

	router.GET("/transactions", h.listTransactions)
	router.POST("/transaction", h.createTransaction)
	router.GET("/transaction/:txId", h.getTransaction)
}

func userLink(username string) string {
	return "/user/" + url.PathEscape(username)
}

func userTransactionsLink(username string) string {
	return "/transactions?user=" + url.QueryEscape(username)
}

func transactionLink(txID string) string {
	return "/transaction/" + txID
}

func (h *Handler) index(c *gin.Context) {
	c.JSON(http.StatusOK, models.IndexResponse{
		Users:        models.Link{Link: "/users"},
		Transactions: models.Link{Link: "/transactions"},
	})
}

// User handlers
func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.svc.ListUsers(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]models.UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, models.UserSummary{Username: u.Username, Link: userLink(u.Username)})
	}

	c.JSON(http.StatusOK, models.UsersResponse{Users: out})
}

func (h *Handler) createUser(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	user, err := h.svc.CreateUser(c.Request.Context(), c.Param("username"), req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Location", userLink(user.Username))
	c.JSON(http.StatusCreated, models.UserSummary{
		Username: user.Username,
		Link:     userLink(user.Username),
	})
}

func (h *Handler) getUser(c *gin.Context) {
	user := c.MustGet(userKey).(*models.User)

	c.JSON(http.StatusOK, models.UserResponse{
		Username:     user.Username,
		Balance:      user.Balance,
		Transactions: models.Link{Link: userTransactionsLink(user.Username)},
	})
}

func (h *Handler) updatePassword(c *gin.Context) {
	var req models.UpdatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	user := c.MustGet(userKey).(*models.User)
	if err := h.svc.UpdatePassword(c.Request.Context(), user.Username, req.Password); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) deleteUser(c *gin.Context) {
	user := c.MustGet(userKey).(*models.User)
	if err := h.svc.DeleteUser(c.Request.Context(), user.Username); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Transaction handlers
func (h *Handler) createTransaction(c *gin.Context) {
	var req models.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	// Money leaving an account needs its owner's password
	if req.Type == models.Withdrawal || req.Type == models.Transfer {
		if req.Password == "" {
			writeBadRequest(c, "MISSING_PASSWORD", "Password required")
			return
		}
		if _, err := h.svc.Authenticate(c.Request.Context(), req.Username, req.Password); err != nil {
			writeError(c, err)
			return
		}
	}

	tx, err := h.svc.CreateTransaction(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Location", transactionLink(tx.TxID))
	c.JSON(http.StatusCreated, tx)
}

func (h *Handler) listTransactions(c *gin.Context) {
	var query models.TransactionQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		writeBadRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	filter := models.TransactionFilter{
		User:  query.User,
		Order: models.SortOrder(query.Order),
	}
	if query.From != "" {
		from, err := models.ParseDate(query.From)
		if err != nil {
			writeBadRequest(c, "INVALID_DATE", "from must be formatted as YYYY-MM-DD HH:MM:SS")
			return
		}
		filter.From = &from
	}
	if query.To != "" {
		to, err := models.ParseDate(query.To)
		if err != nil {
			writeBadRequest(c, "INVALID_DATE", "to must be formatted as YYYY-MM-DD HH:MM:SS")
			return
		}
		filter.To = &to
	}

	txs, err := h.svc.QueryTransactions(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	if txs == nil {
		txs = []models.Transaction{}
	}

	c.JSON(http.StatusOK, models.TransactionsResponse{Transactions: txs})
}

func (h *Handler) getTransaction(c *gin.Context) {
	tx, err := h.svc.GetTransaction(c.Request.Context(), c.Param("txId"))
	if err != nil {
		writeError(c, err)
		return
	}
	if tx == nil {
		writeError(c, service.ErrUnknownTransaction)
		return
	}

	c.JSON(http.StatusOK, tx)
}
