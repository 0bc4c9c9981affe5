// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/jwt"
)

// IdentityKey JWT claims 与 RequestContext 中保存用户名的键
const IdentityKey = "user_id"

// loginRequest 登录请求体
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// JWTAuth 基于 hertz-contrib/jwt 的认证；账号来自配置
type JWTAuth struct {
	mw *jwt.HertzJWTMiddleware
}

// NewJWTAuth 创建 JWT 认证；users 为 用户名 -> 密码
func NewJWTAuth(key []byte, timeout, maxRefresh time.Duration, users map[string]string) (*JWTAuth, error) {
	if len(key) == 0 {
		return nil, errors.New("jwt key is required")
	}
	mw, err := jwt.New(&jwt.HertzJWTMiddleware{
		Realm:         "agent-pipeline",
		Key:           key,
		Timeout:       timeout,
		MaxRefresh:    maxRefresh,
		IdentityKey:   IdentityKey,
		TokenLookup:   "header: Authorization, query: token",
		TokenHeadName: "Bearer",
		TimeFunc:      time.Now,
		PayloadFunc: func(data interface{}) jwt.MapClaims {
			if name, ok := data.(string); ok {
				return jwt.MapClaims{IdentityKey: name}
			}
			return jwt.MapClaims{}
		},
		IdentityHandler: func(ctx context.Context, c *app.RequestContext) interface{} {
			claims := jwt.ExtractClaims(ctx, c)
			name, _ := claims[IdentityKey].(string)
			return name
		},
		Authenticator: func(ctx context.Context, c *app.RequestContext) (interface{}, error) {
			var req loginRequest
			if err := c.BindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
				return nil, jwt.ErrMissingLoginValues
			}
			want, ok := users[req.Username]
			if !ok || subtle.ConstantTimeCompare([]byte(want), []byte(req.Password)) != 1 {
				return nil, jwt.ErrFailedAuthentication
			}
			return req.Username, nil
		},
		Unauthorized: func(ctx context.Context, c *app.RequestContext, code int, message string) {
			c.JSON(code, map[string]string{"error": message})
		},
		LoginResponse: func(ctx context.Context, c *app.RequestContext, code int, token string, expire time.Time) {
			c.JSON(consts.StatusOK, map[string]interface{}{
				"token":  token,
				"expire": expire.Format(time.RFC3339),
			})
		},
	})
	if err != nil {
		return nil, err
	}
	return &JWTAuth{mw: mw}, nil
}

// LoginHandler 登录，返回 token
func (j *JWTAuth) LoginHandler() app.HandlerFunc {
	return j.mw.LoginHandler
}

// RefreshHandler 刷新 token
func (j *JWTAuth) RefreshHandler() app.HandlerFunc {
	return j.mw.RefreshHandler
}

// MiddlewareFunc 校验 token 的中间件
func (j *JWTAuth) MiddlewareFunc() app.HandlerFunc {
	return j.mw.MiddlewareFunc()
}

// IdentityFrom 读取 JWT 中间件写入的用户名；未认证时返回空串
func IdentityFrom(c *app.RequestContext) string {
	if v, ok := c.Get(IdentityKey); ok {
		if name, ok := v.(string); ok {
			return name
		}
	}
	return ""
}
