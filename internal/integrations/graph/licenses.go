package graph

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/url"
	"sort"
	"strings"

	"client-portal/internal/entities"
	apperrors "client-portal/pkg/errors"
)

// Для отображения собираем не больше 100 карточек; подсчёт при этом продолжается.
const maxUnlicensedListed = 100

// UnlicensedUsersResult — итог подсчёта пользователей без лицензии.
// Warning пустой только при полностью успешном Tier 1.
type UnlicensedUsersResult struct {
	Count   int                              `json:"count"`
	Warning string                           `json:"warning,omitempty"`
	Users   []entities.UnlicensedUserSummary `json:"users"`
}

type filterCountOutcome struct {
	success        bool
	count          int
	warning        string
	shouldFallback bool
	users          []entities.UnlicensedUserSummary
	err            error
}

type enumCountOutcome struct {
	count   int
	warning string
	users   []entities.UnlicensedUserSummary
	err     error
}

// CountUnlicensedUsers считает пользователей тенанта без назначенных лицензий.
// Сначала пробуем индексированный фильтр (Tier 1); на отказ "фильтр не
// проиндексирован" переключаемся на полный перебор (Tier 2). Любой другой
// сбой превращается в предупреждение с нулевым счётчиком — наружу ошибка
// не отдаётся никогда.
func (c *Client) CountUnlicensedUsers(ctx context.Context) UnlicensedUsersResult {
	var result UnlicensedUsersResult

	advanced := c.tryCountUnlicensedWithFilter(ctx)
	switch {
	case advanced.err != nil:
		result = UnlicensedUsersResult{Warning: countErrorWarning(advanced.err)}

	case advanced.success:
		result = UnlicensedUsersResult{Count: advanced.count, Users: advanced.users}

	case !advanced.shouldFallback:
		// Не маскируем ошибки авторизации под "нет пользователей без лицензии"
		result = UnlicensedUsersResult{Count: 0, Warning: advanced.warning, Users: advanced.users}

	default:
		fallback := c.countUnlicensedByEnumeration(ctx)
		if fallback.err != nil {
			warning := countErrorWarning(fallback.err)
			if advanced.warning != "" {
				warning = advanced.warning + " " + warning
			}
			result = UnlicensedUsersResult{Warning: warning}
			break
		}

		// Ярусы взаимоисключающие: частичный список Tier 1 отбрасывается
		warning := fallback.warning
		if advanced.warning != "" && warning != "" {
			warning = advanced.warning + " " + warning
		} else if warning == "" {
			warning = advanced.warning
		}
		result = UnlicensedUsersResult{Count: fallback.count, Warning: warning, Users: fallback.users}
	}

	sortUnlicensedUsers(result.Users)
	if result.Users == nil {
		result.Users = []entities.UnlicensedUserSummary{}
	}
	return result
}

func countErrorWarning(err error) string {
	if errors.Is(err, apperrors.ErrGraphCredentialsMissing) {
		return "Не удалось инициализировать клиент Microsoft Graph: " + err.Error()
	}
	return classifyCountError(err)
}

type unlicensedRow struct {
	DisplayName       string            `json:"displayName"`
	UserPrincipalName string            `json:"userPrincipalName"`
	Mail              string            `json:"mail"`
	Department        string            `json:"department"`
	AssignedLicenses  []json.RawMessage `json:"assignedLicenses"`
}

func (r unlicensedRow) summary() entities.UnlicensedUserSummary {
	return entities.UnlicensedUserSummary{
		DisplayName:       r.DisplayName,
		UserPrincipalName: r.UserPrincipalName,
		Mail:              r.Mail,
		Department:        r.Department,
	}
}

// Tier 1: серверный индексированный фильтр + $count.
func (c *Client) tryCountUnlicensedWithFilter(ctx context.Context) filterCountOutcome {
	filter := url.QueryEscape("assignedLicenses/$count eq 0")
	firstURL := c.baseURL + "/users?$select=id,displayName,userPrincipalName,mail,department&$filter=" + filter + "&$top=999&$count=true"
	headers := map[string]string{
		"ConsistencyLevel": "eventual",
		"Prefer":           "odata.maxpagesize=999",
	}

	var (
		countFromOData bool
		total          int
		users          []entities.UnlicensedUserSummary
	)

	err := c.walkPages(ctx, firstURL, headers, func(p page) (bool, error) {
		if !countFromOData {
			total += len(p.Value)

			for _, raw := range p.Value {
				if len(users) >= maxUnlicensedListed {
					break
				}
				var row unlicensedRow
				if err := json.Unmarshal(raw, &row); err != nil {
					continue
				}
				users = append(users, row.summary())
			}
		}

		// Серверный @odata.count авторитетнее постраничного суммирования
		if p.Count != nil {
			if *p.Count > math.MaxInt32 {
				total = math.MaxInt32
			} else {
				total = int(*p.Count)
			}
			countFromOData = true
			return false, nil
		}

		return true, nil
	})

	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			detail := extractErrorDetail(statusErr.Body)
			warning := statusWarning(statusErr.StatusCode, detail)

			if isUnindexedFilterError(statusErr.StatusCode, detail) {
				return filterCountOutcome{
					warning:        warning + " " + fallbackNotice,
					shouldFallback: true,
					users:          users,
				}
			}
			return filterCountOutcome{warning: warning, users: users}
		}
		return filterCountOutcome{err: err}
	}

	return filterCountOutcome{success: true, count: total, users: users}
}

// Tier 2: полный перебор пользователей с клиентским предикатом
// "assignedLicenses отсутствует или пуст".
func (c *Client) countUnlicensedByEnumeration(ctx context.Context) enumCountOutcome {
	firstURL := c.baseURL + "/users?$select=id,displayName,userPrincipalName,mail,department,assignedLicenses&$top=999"
	headers := map[string]string{"Prefer": "odata.maxpagesize=999"}

	var (
		total int
		users []entities.UnlicensedUserSummary
	)

	err := c.walkPages(ctx, firstURL, headers, func(p page) (bool, error) {
		for _, raw := range p.Value {
			var row unlicensedRow
			if err := json.Unmarshal(raw, &row); err != nil {
				continue
			}
			if len(row.AssignedLicenses) > 0 {
				continue
			}

			total++
			if len(users) < maxUnlicensedListed {
				users = append(users, row.summary())
			}
		}
		return true, nil
	})

	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			detail := extractErrorDetail(statusErr.Body)
			return enumCountOutcome{warning: statusWarning(statusErr.StatusCode, detail), users: users}
		}
		return enumCountOutcome{err: err}
	}

	return enumCountOutcome{count: total, warning: enumerationNotice, users: users}
}

// sortUnlicensedUsers сортирует карточки: пользователи без отображаемого
// имени — в конец, далее по имени (или UPN), затем по UPN. Сравнение
// без учёта регистра.
func sortUnlicensedUsers(users []entities.UnlicensedUserSummary) {
	sort.SliceStable(users, func(i, j int) bool {
		a, b := users[i], users[j]

		aHasName := strings.TrimSpace(a.DisplayName) != ""
		bHasName := strings.TrimSpace(b.DisplayName) != ""
		if aHasName != bHasName {
			return aHasName
		}

		aKey := a.DisplayName
		if !aHasName {
			aKey = a.UserPrincipalName
		}
		bKey := b.DisplayName
		if !bHasName {
			bKey = b.UserPrincipalName
		}

		if c := strings.Compare(strings.ToLower(aKey), strings.ToLower(bKey)); c != 0 {
			return c < 0
		}
		return strings.ToLower(a.UserPrincipalName) < strings.ToLower(b.UserPrincipalName)
	})
}
