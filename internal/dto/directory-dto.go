package dto

import (
	"client-portal/internal/entities"
)

// ListUsersQueryDTO — параметры страницы пользователей тенанта.
type ListUsersQueryDTO struct {
	PageSize  int    `query:"page_size" validate:"omitempty,min=1,max=100"`
	SkipToken string `query:"skiptoken"`
	Term      string `query:"term" validate:"omitempty,max=120"`
}

// UsersPageDTO — одна страница пользователей с токеном продолжения.
type UsersPageDTO struct {
	Users         []entities.DirectoryUser `json:"users"`
	NextSkipToken string                   `json:"next_skip_token,omitempty"`
	PageSize      int                      `json:"page_size"`
	Term          string                   `json:"term,omitempty"`
}
