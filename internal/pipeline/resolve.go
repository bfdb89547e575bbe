package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/shouni/go-web-scan/v2/pkg/search"
	"github.com/shouni/go-web-scan/v2/pkg/sheet"
	"github.com/shouni/go-web-scan/v2/pkg/urlnorm"
)

// substitute は会社名で1回だけ検索し、最初の結果に1回だけアクセスします。
// 検索の失敗・結果なし・代替URLでの取得失敗は、いずれもこの行の失敗として記録されます。
func (p *Pipeline) substitute(ctx context.Context, entry sheet.RawEntry, log *zap.Logger) Outcome {
	labels := p.cfg.Labels
	unresolved := Outcome{Row: entry.Row, Status: StatusUnresolved, Result: labels.Unresolved}

	// 1. 検索 (1回のみ)
	query := search.CompanyQuery(p.cfg.SearchTemplate, entry.Company)
	results, err := p.deps.Searcher.Search(ctx, query, 1)
	if err != nil {
		log.Warn("代替URLの検索に失敗しました", zap.String("query", query), zap.Error(err))
		return unresolved
	}
	if len(results) == 0 {
		log.Info("代替URLが見つかりませんでした", zap.String("query", query))
		return unresolved
	}

	// 2. 先頭の結果を正規化
	alternative := results[0]
	candidates, err := urlnorm.Normalize(alternative)
	if err != nil {
		log.Warn("代替URLが不正です", zap.String("alternative", alternative), zap.Error(err))
		return unresolved
	}
	log.Info("代替URLが見つかりました", zap.String("alternative", alternative))

	// 3. 代替URLに1回だけアクセス
	res, err := p.deps.Fetcher.Fetch(ctx, candidates[:1])
	if err != nil {
		return Outcome{
			Row:         entry.Row,
			Status:      StatusAccessError,
			Result:      fmt.Sprintf(labels.AccessFailedAlternative, failureReason(err)),
			Alternative: alternative,
		}
	}

	out := p.classify(ctx, entry, res, log)
	out.Alternative = alternative
	return out
}
