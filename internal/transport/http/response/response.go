package response

import "github.com/gin-gonic/gin"

// APIResponse is the body of every auth endpoint reply. UserID is only set
// on success.
type APIResponse struct {
	Message string `json:"message"`
	UserID  uint   `json:"userId,omitempty"`
}

func OK(c *gin.Context, message string, userID uint) {
	c.JSON(200, APIResponse{
		Message: message,
		UserID:  userID,
	})
}

func Error(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, APIResponse{
		Message: message,
	})
}
