package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/DeafMist/headline-radar/internal/errs"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: errs.ExitOK},
		{name: "input", err: fmt.Errorf("%w: missing column", errs.ErrInputFormat), want: errs.ExitInput},
		{name: "store", err: fmt.Errorf("bulk insert: %w", errs.ErrStore), want: errs.ExitStore},
		{name: "model", err: fmt.Errorf("%w: extract: %w", errs.ErrModel, errors.New("boom")), want: errs.ExitModel},
		{name: "config", err: errs.ErrConfig, want: errs.ExitConfig},
		{name: "other", err: errors.New("unexpected"), want: errs.ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, errs.ExitCode(tt.err))
		})
	}
}
