package models

// Request models
type CreateUserRequest struct {
	Password string `json:"password" binding:"required,alphanum"`
}

type UpdatePasswordRequest struct {
	Password string `json:"password" binding:"required,alphanum"`
}

type CreateTransactionRequest struct {
	Type      TxType `json:"type" binding:"required"`
	Amount    int64  `json:"amount" binding:"required"`
	Username  string `json:"username" binding:"required"`
	Recipient string `json:"recipient"`
	Password  string `json:"password"`
}

type TransactionQuery struct {
	User  string `form:"user"`
	From  string `form:"from"`
	To    string `form:"to"`
	Order string `form:"order"`
}

// Response models
type Link struct {
	Link string `json:"link"`
}

type IndexResponse struct {
	Users        Link `json:"users"`
	Transactions Link `json:"transactions"`
}

type UserSummary struct {
	Username string `json:"username"`
	Link     string `json:"link"`
}

type UsersResponse struct {
	Users []UserSummary `json:"users"`
}

type UserResponse struct {
	Username     string `json:"username"`
	Balance      int64  `json:"balance"`
	Transactions Link   `json:"transactions"`
}

type TransactionsResponse struct {
	Transactions []Transaction `json:"transactions"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
