package mockserver

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/moweilong/univadmin/pkg/gin/middleware"
	"github.com/moweilong/univadmin/pkg/gin/validator"
	"github.com/moweilong/univadmin/pkg/jwt"
	jwtstore "github.com/moweilong/univadmin/pkg/jwt/store"
)

type loginForm struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshForm struct {
	Refresh string `json:"refresh" binding:"required"`
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, validator.FieldErrors(err))
}

func tokenNotValid(c *gin.Context, detail string) {
	c.JSON(http.StatusUnauthorized, gin.H{"detail": detail, "code": "token_not_valid"})
}

func (s *Server) account(uid string) (*Account, bool) {
	for i := range s.cfg.Accounts {
		if strconv.Itoa(s.cfg.Accounts[i].ID) == uid {
			return &s.cfg.Accounts[i], true
		}
	}
	return nil, false
}

// issue signs a new token pair and opens its refresh session.
func (s *Server) issue(c *gin.Context, acc *Account) (*jwt.Tokens, error) {
	tokens, err := jwt.GenerateTwoTokens(strconv.Itoa(acc.ID),
		jwt.WithGenerateTwoTokensSignKey([]byte(s.cfg.JWTKey)),
		jwt.WithGenerateTwoTokensFields(map[string]interface{}{"username": acc.Username, "role": acc.Role}),
		jwt.WithGenerateTwoTokensAccessTokenClaims(jwt.WithExpires(s.cfg.AccessTTL)),
		jwt.WithGenerateTwoTokensRefreshTokenClaims(jwt.WithExpires(s.cfg.RefreshTTL)),
	)
	if err != nil {
		return nil, err
	}
	expiry := time.Now().Add(s.cfg.RefreshTTL)
	if err = s.cfg.Sessions.Set(c.Request.Context(), tokens.JwtID, strconv.Itoa(acc.ID), expiry); err != nil {
		return nil, err
	}
	s.trackAccess(tokens.AccessToken)
	return tokens, nil
}

func (s *Server) login(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, err)
		return
	}

	var acc *Account
	for i := range s.cfg.Accounts {
		if s.cfg.Accounts[i].Username == form.Username && s.cfg.Accounts[i].checkPassword(form.Password) {
			acc = &s.cfg.Accounts[i]
			break
		}
	}
	if acc == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "No active account found with the given credentials"})
		return
	}

	tokens, err := s.issue(c, acc)
	if err != nil {
		s.log.Error("issue tokens", zap.Error(err), middleware.GCtxRequestIDField(c))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "A server error occurred."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access": tokens.AccessToken, "refresh": tokens.RefreshToken, "user": acc})
}

func (s *Server) refresh(c *gin.Context) {
	var form refreshForm
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, err)
		return
	}

	claims, err := jwt.ValidateToken(form.Refresh,
		jwt.WithValidateTokenSignKey([]byte(s.cfg.JWTKey)), jwt.WithValidateTokenType(jwt.TypeRefresh))
	if err != nil {
		tokenNotValid(c, "Token is invalid or expired")
		return
	}
	ctx := c.Request.Context()
	if _, err = s.cfg.Sessions.Get(ctx, claims.ID); err != nil {
		tokenNotValid(c, "Token is blacklisted")
		return
	}

	if s.cfg.RotateRefresh {
		acc, ok := s.account(claims.UID)
		if !ok {
			tokenNotValid(c, "User not found")
			return
		}
		tokens, err := s.issue(c, acc)
		if err != nil {
			s.log.Error("rotate tokens", zap.Error(err), middleware.GCtxRequestIDField(c))
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "A server error occurred."})
			return
		}
		_ = s.cfg.Sessions.Delete(ctx, claims.ID)
		c.JSON(http.StatusOK, gin.H{"access": tokens.AccessToken, "refresh": tokens.RefreshToken})
		return
	}

	access, _, err := jwt.RefreshAccessToken(form.Refresh,
		jwt.WithRefreshSignKey([]byte(s.cfg.JWTKey)), jwt.WithRefreshAccessTokenExpires(s.cfg.AccessTTL))
	if err != nil {
		tokenNotValid(c, "Token is invalid or expired")
		return
	}
	s.trackAccess(access)
	c.JSON(http.StatusOK, gin.H{"access": access})
}

// logout revokes the refresh session, the refresh token stops working.
func (s *Server) logout(c *gin.Context) {
	var form refreshForm
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, err)
		return
	}
	claims, err := jwt.ValidateToken(form.Refresh,
		jwt.WithValidateTokenSignKey([]byte(s.cfg.JWTKey)), jwt.WithValidateTokenType(jwt.TypeRefresh))
	if err != nil {
		tokenNotValid(c, "Token is invalid or expired")
		return
	}
	_ = s.cfg.Sessions.Delete(c.Request.Context(), claims.ID)
	c.Status(http.StatusResetContent)
}

func (s *Server) me(c *gin.Context) {
	claims, _ := middleware.GetClaims(c)
	acc, ok := s.account(claims.UID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Not found."})
		return
	}
	c.JSON(http.StatusOK, acc)
}

// verifySession rejects access tokens whose session was revoked or that were expired on demand.
func (s *Server) verifySession(claims *jwt.Claims, c *gin.Context) error {
	token := strings.TrimPrefix(c.GetHeader(middleware.HeaderAuthorizationKey), "Bearer ")
	if s.isRevoked(token) {
		return errors.New("token is invalid or expired")
	}
	session, err := s.cfg.Sessions.Get(c.Request.Context(), claims.ID)
	if err != nil {
		if errors.Is(err, jwtstore.ErrSessionNotFound) || errors.Is(err, jwtstore.ErrSessionExpired) {
			return errors.New("token is blacklisted")
		}
		return err
	}
	if session.UID != claims.UID {
		return errors.New("token is blacklisted")
	}
	return nil
}
