package util

import (
	"encoding/json"
	"fmt"
)

func Pprint(i interface{}) {
	bytes, err := json.MarshalIndent(i, "", "    ")
	if err != nil {
		panic(err)
	}
	fmt.Println(string(bytes))
}

func IntPointer(i int) *int {
	return &i
}
