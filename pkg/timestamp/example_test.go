package timestamp_test

import (
	"fmt"

	"github.com/c360/topstack/pkg/timestamp"
)

func ExampleParseUTC() {
	t, err := timestamp.ParseUTC("2024-01-01T12:00:00Z")
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(t.Year(), t.Month(), t.Hour())

	_, err = timestamp.ParseUTC("2024-01-01T12:00:00+08:00")
	fmt.Println(err != nil)
	// Output:
	// 2024 January 12
	// true
}

func ExampleFormatUTC() {
	t, _ := timestamp.ParseUTC("2024-01-01T12:00:00.500Z")
	fmt.Println(timestamp.FormatUTC(t))
	// Output: 2024-01-01T12:00:00.5Z
}
