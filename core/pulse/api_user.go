package pulse

import (
	"context"

	"github.com/socialpulse/desktop/core/model"
)

// Profile 获取当前登录用户信息。
func (c *Client) Profile(ctx context.Context) (*model.User, error) {
	if err := c.checkReady(); err != nil {
		return nil, err
	}
	var user model.User
	if err := c.get(ctx, "/auth/user/", nil, &user); err != nil {
		return nil, toPulseError(err)
	}
	return &user, nil
}
