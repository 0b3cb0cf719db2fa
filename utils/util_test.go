package utils_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils"
)

func TestFind(t *testing.T) {
	all := []string{"a", "b", "c"}
	index := map[int32]string{1: "a", 2: "b", 3: "c"}

	found, missing := utils.Find(index, all, []int32{3, 9, 1})
	assert.Equal(t, []string{"c", "a"}, found)
	assert.Equal(t, []int32{9}, missing)

	found, missing = utils.Find(index, all, nil)
	assert.Equal(t, all, found)
	assert.Empty(t, missing)
}
