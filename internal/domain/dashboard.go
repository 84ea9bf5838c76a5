package domain

// MonthlyTrend is income and expenses for one month.
type MonthlyTrend struct {
	Month    string  `json:"month"`
	Income   float64 `json:"income"`
	Expenses float64 `json:"expenses"`
}

// DashboardStats is the headline summary served by the upstream dashboard endpoint.
type DashboardStats struct {
	TotalIncome        float64        `json:"totalIncome"`
	TotalExpenses      float64        `json:"totalExpenses"`
	NetIncome          float64        `json:"netIncome"`
	AccountsBalance    float64        `json:"accountsBalance"`
	RecentTransactions []Transaction  `json:"recentTransactions"`
	MonthlyTrend       []MonthlyTrend `json:"monthlyTrend"`
}
