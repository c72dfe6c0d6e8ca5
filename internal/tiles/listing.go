package tiles

import (
	"context"

	"go.uber.org/zap"
)

// ListTiles returns every persisted tile ordered by page, then position.
func (s *Service) ListTiles(ctx context.Context) ([]Tile, error) {
	if s.db == nil {
		s.logError(opListTiles, reasonMissingDatabase, errMissingDatabase)
		return nil, newServiceError(opListTiles, reasonMissingDatabase, storeFailure(errMissingDatabase))
	}

	tiles := make([]Tile, 0)
	if err := s.db.WithContext(ctx).
		Order(orderCoordinates).
		Find(&tiles).Error; err != nil {
		s.logError(opListTiles, reasonQueryFailed, err)
		return nil, newServiceError(opListTiles, reasonQueryFailed, storeFailure(err))
	}
	return tiles, nil
}

// ListPage returns the persisted tiles of one page in position order.
func (s *Service) ListPage(ctx context.Context, pageNumber int) ([]Tile, error) {
	if _, err := NewCoordinates(pageNumber, 0); err != nil {
		return nil, newServiceError(opListPage, reasonInvalidCoords, err)
	}
	if s.db == nil {
		s.logError(opListPage, reasonMissingDatabase, errMissingDatabase)
		return nil, newServiceError(opListPage, reasonMissingDatabase, storeFailure(errMissingDatabase))
	}

	tiles := make([]Tile, 0, PageSize)
	if err := s.db.WithContext(ctx).
		Where(fieldPageNumber+" = ?", pageNumber).
		Order(fieldPosition + " ASC").
		Find(&tiles).Error; err != nil {
		s.logError(opListPage, reasonQueryFailed, err, zap.Int(fieldPageNumber, pageNumber))
		return nil, newServiceError(opListPage, reasonQueryFailed, storeFailure(err))
	}
	return tiles, nil
}

type pageCount struct {
	PageNumber int
	Claimed    int
}

// PageSummaries counts claimed tiles per page for every page holding at least one tile.
func (s *Service) PageSummaries(ctx context.Context) ([]PageSummary, error) {
	if s.db == nil {
		s.logError(opPageSummaries, reasonMissingDatabase, errMissingDatabase)
		return nil, newServiceError(opPageSummaries, reasonMissingDatabase, storeFailure(errMissingDatabase))
	}

	var counts []pageCount
	if err := s.db.WithContext(ctx).
		Model(&Tile{}).
		Select(fieldPageNumber + ", COUNT(*) AS claimed").
		Group(fieldPageNumber).
		Order(fieldPageNumber + " ASC").
		Scan(&counts).Error; err != nil {
		s.logError(opPageSummaries, reasonQueryFailed, err)
		return nil, newServiceError(opPageSummaries, reasonQueryFailed, storeFailure(err))
	}

	summaries := make([]PageSummary, 0, len(counts))
	for _, count := range counts {
		summaries = append(summaries, PageSummary{
			PageNumber: count.PageNumber,
			Claimed:    count.Claimed,
			Complete:   count.Claimed >= PageSize,
		})
	}
	return summaries, nil
}
