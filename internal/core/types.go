package core

import "budgetcore/pkg/domain"

type (
	Dashboard     = domain.Dashboard
	DashboardData = domain.DashboardData
	Group         = domain.Group
	Item          = domain.Item
	Date          = domain.Date
	Month         = domain.Month
	Repeat        = domain.Repeat
	UserDocument  = domain.UserDocument
)

const (
	RepeatNone    = domain.RepeatNone
	RepeatWeekly  = domain.RepeatWeekly
	RepeatMonthly = domain.RepeatMonthly
)
