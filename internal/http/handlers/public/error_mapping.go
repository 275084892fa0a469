package public

import (
	"errors"

	handlershared "github.com/coupon-next/internal/http/handlers/shared"
	"github.com/coupon-next/internal/http/response"
	"github.com/coupon-next/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
}

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.target.Error(), nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackMsg, err)
}

var couponRedeemErrorRules = []mappedHandlerError{
	{target: service.ErrCouponInvalid, code: response.CodeBadRequest},
	{target: service.ErrCouponNotFound, code: response.CodeNotFound},
	{target: service.ErrCouponExpired, code: response.CodeConflict},
	{target: service.ErrCouponNotYetActive, code: response.CodeConflict},
	{target: service.ErrCouponUsageLimit, code: response.CodeConflict},
	{target: service.ErrCouponAlreadyRedeemed, code: response.CodeConflict},
	{target: service.ErrRedeemRejected, code: response.CodeForbidden},
}

var couponCheckErrorRules = []mappedHandlerError{
	{target: service.ErrCouponInvalid, code: response.CodeBadRequest},
	{target: service.ErrCouponNotFound, code: response.CodeNotFound},
}

func respondCouponRedeemError(c *gin.Context, err error) {
	respondWithMappedError(c, err, couponRedeemErrorRules, response.CodeInternal, service.ErrCouponRedeemFailed.Error())
}

func respondCouponCheckError(c *gin.Context, err error) {
	respondWithMappedError(c, err, couponCheckErrorRules, response.CodeInternal, service.ErrCouponFetchFailed.Error())
}
