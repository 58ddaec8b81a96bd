package database

// ArticleRecord is the archive input for one harvested article.
type ArticleRecord struct {
	GUID          string
	Link          string
	Title         string
	Summary       string
	Published     string
	Content       string
	ContentStatus string
	ContentHash   string
}

type ArticleRepositoryInterface interface {
	UpsertArticle(source string, record ArticleRecord) error
	CheckDuplicate(source, contentHash string) (bool, error)
	GetRecentArticles(source string, limit int) ([]Article, error)
	GetArticleCount(source string) (int, error)
}

var _ ArticleRepositoryInterface = (*ArticleRepository)(nil)
