package nodes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLastSellerLine(t *testing.T) {
	history := "Покупатель: Есть айфон?\nПродавец: Да, iPhone 13 в наличии за 45000.\nПокупатель: А сколько стоит?"
	assert.Equal(t, "Да, iPhone 13 в наличии за 45000.", lastSellerLine(history))

	assert.Equal(t, "", lastSellerLine(""))
	assert.Equal(t, "", lastSellerLine("Покупатель: привет"))

	// The latest seller reply wins when there are several.
	history = "Продавец: первый ответ\nПокупатель: ок\nПродавец: второй ответ"
	assert.Equal(t, "второй ответ", lastSellerLine(history))
}
