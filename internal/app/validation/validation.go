package validation

import (
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"merodocs-http-service/internal/domain/models"
)

var once sync.Once

// Register 在 gin 的校验器上注册自定义规则，可重复调用
func Register() {
	once.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			mustRegister(v)
		}
	})
}

func mustRegister(v *validator.Validate) {
	if err := v.RegisterValidation("visit_kind", visitKind); err != nil {
		panic(err)
	}
	if err := v.RegisterValidation("push_token", pushToken); err != nil {
		panic(err)
	}
}

// visitKind 访客类型；允许空值，配合 required 使用
func visitKind(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return s == "" || models.VisitKind(s).Valid()
}

// pushToken 推送令牌会作为 MQTT 主题的一部分，不能包含通配符
func pushToken(fl validator.FieldLevel) bool {
	s := strings.TrimSpace(fl.Field().String())
	return s != "" && !strings.ContainsAny(s, "+#/")
}

// New 返回带有自定义规则的独立校验器，供非 gin 场景使用
func New() *validator.Validate {
	v := validator.New()
	mustRegister(v)
	return v
}
