package urlnorm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-web-scan/v2/pkg/urlnorm"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected []string
		wantErr  error
	}{
		{
			name:    "空文字列",
			raw:     "",
			wantErr: urlnorm.ErrEmpty,
		},
		{
			name:    "空白を含む",
			raw:     "example .com",
			wantErr: urlnorm.ErrInvalid,
		},
		{
			name:    "末尾のタブ",
			raw:     "example.com\t",
			wantErr: urlnorm.ErrInvalid,
		},
		{
			name:    "ドットなし",
			raw:     "localhost",
			wantErr: urlnorm.ErrInvalid,
		},
		{
			name:    "スキーム付きでもドットなしは無効",
			raw:     "https://intranet",
			wantErr: urlnorm.ErrInvalid,
		},
		{
			name:     "https付きはそのまま",
			raw:      "https://example.com/path?q=1",
			expected: []string{"https://example.com/path?q=1"},
		},
		{
			name:     "http付きはそのまま",
			raw:      "http://example.com",
			expected: []string{"http://example.com"},
		},
		{
			name:     "大文字スキームもそのまま",
			raw:      "HTTPS://Example.com",
			expected: []string{"HTTPS://Example.com"},
		},
		{
			name:     "スキームなしはhttps,httpの順",
			raw:      "example.com",
			expected: []string{"https://example.com", "http://example.com"},
		},
		{
			name:     "スキームなしでパス付き",
			raw:      "www.example.es/es/inicio",
			expected: []string{"https://www.example.es/es/inicio", "http://www.example.es/es/inicio"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual, err := urlnorm.Normalize(tt.raw)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, actual, "無効な入力に候補URLを返してはいけません")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, actual)
		})
	}
}

func TestPlausible(t *testing.T) {
	assert.True(t, urlnorm.Plausible("a.b"))
	assert.False(t, urlnorm.Plausible(""))
	assert.False(t, urlnorm.Plausible("a b.c"))
	assert.False(t, urlnorm.Plausible("a b.c"), "ノーブレークスペースも空白として扱う")
	assert.False(t, urlnorm.Plausible("abc"))
}

func TestBaseURL(t *testing.T) {
	base, err := urlnorm.BaseURL("https://example.com/es/contacto?x=1#top")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", base)

	base, err = urlnorm.BaseURL("HTTP://example.com:8080/a")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com:8080", base)

	_, err = urlnorm.BaseURL("example.com/a")
	assert.Error(t, err)
}
