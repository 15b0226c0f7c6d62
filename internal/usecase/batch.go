package usecase

import (
	"feedrelay/internal/domain"
)

// SelectIssue просматривает выпуски в порядке ленты и останавливается на
// первом, для которого pick вернул хотя бы одну статью. Результат этого
// выпуска и есть весь результат; следующие выпуски не извлекаются.
// Если такого выпуска нет, возвращается nil.
func SelectIssue(
	issues []domain.DigestIssue,
	extractor Extractor,
	pick func([]domain.SubArticle) []domain.SubArticle,
) (*domain.DigestIssue, []domain.SubArticle) {
	for i := range issues {
		fresh := pick(extractor.Extract(issues[i].Description))
		if len(fresh) > 0 {
			return &issues[i], fresh
		}
	}
	return nil, nil
}
