package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"client-portal/internal/entities"
)

const userSelectFields = "id,displayName,userPrincipalName,mail,jobTitle,department,mobilePhone"

type ListUsersOptions struct {
	PageSize  int
	SkipToken string
	Term      string // необязательный префикс displayName
}

// UsersPage — одна страница пользователей тенанта с токеном продолжения.
type UsersPage struct {
	Users         []entities.DirectoryUser
	NextSkipToken string
}

type graphUser struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	UserPrincipalName string `json:"userPrincipalName"`
	Mail              string `json:"mail"`
	JobTitle          string `json:"jobTitle"`
	Department        string `json:"department"`
	MobilePhone       string `json:"mobilePhone"`
}

// ListUsers возвращает одну страницу пользователей тенанта.
// Следующая страница запрашивается клиентом по NextSkipToken.
func (c *Client) ListUsers(ctx context.Context, opts ListUsersOptions) (*UsersPage, error) {
	top := clampPageSize(opts.PageSize)

	reqURL := c.baseURL + "/users?$select=" + userSelectFields
	if opts.Term != "" {
		// Одинарные кавычки в OData-литерале экранируются удвоением
		safeTerm := strings.ReplaceAll(opts.Term, "'", "''")
		reqURL += "&$filter=" + url.QueryEscape(fmt.Sprintf("startswith(displayName,'%s')", safeTerm))
	}
	reqURL += fmt.Sprintf("&$top=%d", top)
	if opts.SkipToken != "" {
		reqURL += "&$skiptoken=" + url.QueryEscape(opts.SkipToken)
	}

	result := &UsersPage{Users: []entities.DirectoryUser{}}

	err := c.walkPages(ctx, reqURL, nil, func(p page) (bool, error) {
		for _, raw := range p.Value {
			var u graphUser
			if err := json.Unmarshal(raw, &u); err != nil {
				c.logger.Warn("Не удалось разобрать пользователя Graph, запись пропущена", zap.Error(err))
				continue
			}
			result.Users = append(result.Users, entities.DirectoryUser{
				ID:                u.ID,
				DisplayName:       u.DisplayName,
				UserPrincipalName: u.UserPrincipalName,
				Mail:              u.Mail,
				JobTitle:          u.JobTitle,
				Department:        u.Department,
				MobilePhone:       u.MobilePhone,
			})
		}
		result.NextSkipToken = ExtractSkipToken(p.NextLink)
		// Отдаём ровно одну страницу — продолжение за клиентом
		return false, nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
