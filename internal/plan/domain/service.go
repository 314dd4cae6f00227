package domain

import (
	"context"
	"errors"
)

type Service interface {
	GetByCode(ctx context.Context, code string) (*Plan, error)
	List(ctx context.Context) ([]Plan, error)
}

var (
	ErrInvalidCode  = errors.New("invalid_plan_code")
	ErrPlanNotFound = errors.New("plan_not_found")
)
