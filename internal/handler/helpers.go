package handler

import (
	"errors"
	"net/http"
	"reflect"

	"forneria/internal/apierror"
	"forneria/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func init() {
	// Register decimal.Decimal as a numeric type so that validator tags like
	// min=0, gt=0, required work without panicking ("Bad field type decimal.Decimal").
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("JSON invalido: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		for _, fe := range err.(validator.ValidationErrors) {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// writeServiceError translates the service error taxonomy into HTTP status
// codes. Unknown errors are registered on the context so the ErrorHandler
// middleware logs them and answers with a generic 500.
func writeServiceError(c *gin.Context, err error) {
	var vErr *service.ValidationError
	if errors.As(err, &vErr) {
		c.JSON(http.StatusBadRequest, apierror.New(vErr.Detalle))
		return
	}
	var nfErr *service.NotFoundError
	if errors.As(err, &nfErr) {
		c.JSON(http.StatusNotFound, apierror.New(nfErr.Error()))
		return
	}
	var stockErr *service.InsufficientStockError
	if errors.As(err, &stockErr) {
		c.JSON(http.StatusConflict, apierror.NewStock(stockErr.Error(), stockErr.Solicitado, stockErr.Disponible))
		return
	}
	if errors.Is(err, service.ErrProductoOcupado) {
		c.JSON(http.StatusConflict, apierror.New(err.Error()))
		return
	}
	var cErr *service.ConsistencyError
	if errors.As(err, &cErr) {
		// Never leak the invariant detail to the client
		_ = c.Error(err)
		c.Abort()
		return
	}
	_ = c.Error(err)
	c.Abort()
}
