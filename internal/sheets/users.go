package sheets

import (
	"context"
	"fmt"

	"osutrack-bot/internal/models"
)

// GetUsers reads the Users worksheet in stored order.
func (c *Client) GetUsers(ctx context.Context) ([]models.User, error) {
	ok, err := c.exists(ctx, SheetUsers)
	if err != nil || !ok {
		return nil, err
	}
	values, err := c.readAll(ctx, SheetUsers)
	if err != nil {
		return nil, fmt.Errorf("read users: %w", err)
	}
	out := []models.User{}
	for i := 1; i < len(values); i++ {
		u, ok, err := ParseUserRow(values[i])
		if err != nil {
			return nil, fmt.Errorf("users row %d: %w", i+1, err)
		}
		if ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (c *Client) ReplaceAllUsers(ctx context.Context, users []models.User) error {
	rows := make([][]interface{}, len(users))
	for i, u := range users {
		rows[i] = UserRow(u)
	}
	return c.replaceRows(ctx, SheetUsers, UserHeader, rows)
}
