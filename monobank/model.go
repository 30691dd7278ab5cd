package monobank

type ClientInfo struct {
	ClientID   string    `json:"clientId"`
	Name       string    `json:"name"`
	WebHookURL string    `json:"webHookUrl"`
	Accounts   []Account `json:"accounts"`
}

type Account struct {
	ID           string `json:"id"`
	CurrencyCode int    `json:"currencyCode"`
	Balance      int64  `json:"balance"`
	Type         string `json:"type"`
}

type webHookRequest struct {
	WebHookURL string `json:"webHookUrl"`
}

// WebHookEvent is the body Monobank posts for every new statement item.
type WebHookEvent struct {
	Type string `json:"type"`
	Data struct {
		Account       string        `json:"account"`
		StatementItem StatementItem `json:"statementItem"`
	} `json:"data"`
}

// StatementItem amounts are in minor currency units.
type StatementItem struct {
	ID           string `json:"id"`
	Time         int64  `json:"time"`
	Description  string `json:"description"`
	MCC          int    `json:"mcc"`
	Amount       int64  `json:"amount"`
	CurrencyCode int    `json:"currencyCode" default:"980"`
	Balance      int64  `json:"balance"`
}

const EventStatementItem = "StatementItem"
