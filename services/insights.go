package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"prospect-scraper/models"
	"prospect-scraper/storage"
	"prospect-scraper/utils"
)

type InsightService struct {
	store  storage.PropertyStore
	logger *utils.Logger
}

func NewInsightService(store storage.PropertyStore, logger *utils.Logger) *InsightService {
	return &InsightService{store: store, logger: logger}
}

// ForSource loads the stored rows of source and summarises them.
func (s *InsightService) ForSource(ctx context.Context, source string) (*models.InsightReport, error) {
	rows, err := s.store.FetchBySource(ctx, source)
	if err != nil {
		s.logger.Error("Failed to load stored properties for %s: %v", source, err)
		return nil, fmt.Errorf("insights for %s: %w", source, err)
	}
	return s.Generate(source, rows), nil
}

func (s *InsightService) Generate(source string, rows []*models.PersistedProperty) *models.InsightReport {
	report := &models.InsightReport{
		Source:         source,
		ByDepartment:   make(map[string]int),
		ByPropertyType: make(map[string]int),
	}

	if len(rows) == 0 {
		return report
	}

	report.TotalProperties = len(rows)

	var totalPrice, totalQuality float64
	priced := 0
	for _, p := range rows {
		if p.IsActive {
			report.ActiveProperties++
		}
		if p.DataQualityScore < 1 {
			report.FlaggedForReview++
		}
		totalQuality += p.DataQualityScore

		if p.LocationDepartment != "" {
			report.ByDepartment[p.LocationDepartment]++
		}
		if p.PropertyType != "" {
			report.ByPropertyType[p.PropertyType]++
		}

		if p.Price <= 0 {
			continue
		}
		if priced == 0 || p.Price < report.MinPrice {
			report.MinPrice = p.Price
		}
		if p.Price > report.MaxPrice {
			report.MaxPrice = p.Price
		}
		totalPrice += float64(p.Price)
		priced++
	}

	if priced > 0 {
		report.AveragePrice = round2(totalPrice / float64(priced))
	}
	report.AverageQuality = round2(totalQuality / float64(len(rows)))

	return report
}

func (s *InsightService) Print(r *models.InsightReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  📊 %s INSIGHTS\033[0m\n", strings.ToUpper(r.Source))
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("\033[1;33m  Overview\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Stored properties  : \033[1m%d\033[0m\n", r.TotalProperties)
	fmt.Printf("  Active             : \033[1m%d\033[0m\n", r.ActiveProperties)
	fmt.Printf("  Flagged for review : \033[1m%d\033[0m\n", r.FlaggedForReview)
	fmt.Printf("  Average quality    : \033[1m%.2f\033[0m\n", r.AverageQuality)
	fmt.Println()

	fmt.Printf("\033[1;33m  Price Statistics\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if r.AveragePrice > 0 {
		fmt.Printf("  Average price : \033[1;32m%.0f €\033[0m\n", r.AveragePrice)
		fmt.Printf("  Minimum price : \033[1;32m%d €\033[0m\n", r.MinPrice)
		fmt.Printf("  Maximum price : \033[1;32m%d €\033[0m\n", r.MaxPrice)
	} else {
		fmt.Printf("  No price data available\n")
	}
	fmt.Println()

	printCounts("Properties by Department", r.ByDepartment, thin)
	printCounts("Properties by Type", r.ByPropertyType, thin)

	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)
}

func printCounts(title string, counts map[string]int, thin string) {
	fmt.Printf("\033[1;33m  %s\033[0m\n", title)
	fmt.Printf("  %s\n", thin)
	if len(counts) == 0 {
		fmt.Printf("  No data\n\n")
		return
	}

	type keyCount struct {
		key   string
		count int
	}
	var kcs []keyCount
	for k, c := range counts {
		kcs = append(kcs, keyCount{k, c})
	}
	// Sort by count descending, then name
	sort.Slice(kcs, func(i, j int) bool {
		if kcs[i].count != kcs[j].count {
			return kcs[i].count > kcs[j].count
		}
		return kcs[i].key < kcs[j].key
	})
	for _, kc := range kcs {
		bar := strings.Repeat("█", min(kc.count, 40))
		fmt.Printf("  %-30s %s (%d)\n", truncate(kc.key, 28), bar, kc.count)
	}
	fmt.Println()
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
