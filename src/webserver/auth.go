package webserver

import (
	"crypto/subtle"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Auth struct {
	jwtSecret  []byte
	adminToken string
}

func NewAuth(secret []byte, adminToken string) Auth {
	return Auth{jwtSecret: secret, adminToken: adminToken}
}

// Login exchanges the configured admin token for a short-lived JWT.
func (a Auth) Login(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
		return
	}
	if a.adminToken == "" ||
		subtle.ConstantTimeCompare([]byte(req.Token), []byte(a.adminToken)) != 1 {
		log.Printf("Auth failed from IP %s", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"err": "bad token"})
		return
	}
	token, err := issueJWT("admin", a.jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
