package relation

import (
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

var placeholder = regexp.MustCompile(`\$(\d+)`)

func TestReassignStatements_ArgsMatchPlaceholders(t *testing.T) {
	for i, statement := range reassignStatements {
		highest := 0
		for _, m := range placeholder.FindAllStringSubmatch(statement.query, -1) {
			n, _ := strconv.Atoi(m[1])
			if n > highest {
				highest = n
			}
		}

		args := statement.args(1, 2)
		assert.Len(t, args, highest, "statement %d: %s", i, statement.query)
		assert.Equal(t, int64(1), args[0], "statement %d binds the source first", i)
	}
}
