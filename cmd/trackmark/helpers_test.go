package main

import (
	"strconv"
	"testing"

	"github.com/spf13/viper"
)

func strUint(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func resetViper(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
}
