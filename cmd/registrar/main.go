// Package main - точка входа консольного реестра записи на курсы.
//
// Оператор добавляет студентов, записывает их на курсы с ограниченной
// вместимостью (VIP-студенты проходят сверх лимита) и закрывает курсы.
// Уведомления студентам и преподавателю печатаются сразу в консоль,
// доменные события идут в журнал и, при наличии Redis, в pub/sub канал.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}
