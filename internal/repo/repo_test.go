package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/KNICEX/listing-agent/internal/entity"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type RepoSuite struct {
	suite.Suite
	db  *gorm.DB
	ctx context.Context

	channelRepo  ChannelRepo
	exchangeRepo ExchangeRepo
	listingRepo  ListingRepo
}

func TestRepoSuite(t *testing.T) {
	suite.Run(t, new(RepoSuite))
}

func (s *RepoSuite) SetupTest() {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	s.Require().NoError(err)
	s.Require().NoError(InitTables(db))

	s.db = db
	s.ctx = context.Background()
	s.channelRepo = NewChannelRepo(db)
	s.exchangeRepo = NewExchangeRepo(db)
	s.listingRepo = NewListingRepo(db)
}

func (s *RepoSuite) TearDownTest() {
	sqlDB, err := s.db.DB()
	s.Require().NoError(err)
	_ = sqlDB.Close()
}

func (s *RepoSuite) TestChannelCreateOrGet() {
	first, err := s.channelRepo.CreateOrGet(s.ctx, "BWEnews")
	s.Require().NoError(err)
	s.NotZero(first.Id)

	again, err := s.channelRepo.CreateOrGet(s.ctx, " BWEnews ")
	s.Require().NoError(err)
	s.Equal(first.Id, again.Id)

	all, err := s.channelRepo.FindAll(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 1)
}

func (s *RepoSuite) TestChannelDelete() {
	ch, err := s.channelRepo.CreateOrGet(s.ctx, "listings")
	s.Require().NoError(err)

	s.Require().NoError(s.channelRepo.Delete(s.ctx, ch.Id))

	_, err = s.channelRepo.FindById(s.ctx, ch.Id)
	s.True(IsNotFound(err))
}

func (s *RepoSuite) TestExchangeNames() {
	for _, name := range []string{"Binance", "OKX", "Binance"} {
		_, err := s.exchangeRepo.CreateOrGet(s.ctx, name)
		s.Require().NoError(err)
	}

	names, err := s.exchangeRepo.Names(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"Binance", "OKX"}, names)
}

func (s *RepoSuite) TestListingFindLatest() {
	base := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)
	rows := []entity.Listing{
		{Token: "EXT", Exchange: "Binance", Market: "Spot", ObservedAt: base},
		{Token: "ABC", Exchange: "OKX", Market: "Futures", ObservedAt: base.Add(time.Minute)},
		{Token: "XYZ", Exchange: "Binance", Market: "Futures", ObservedAt: base.Add(2 * time.Minute),
			PriceUSDT: decimal.NewNullDecimal(decimal.RequireFromString("0.1234"))},
	}
	for _, row := range rows {
		saved, err := s.listingRepo.Create(s.ctx, row)
		s.Require().NoError(err)
		s.NotZero(saved.Id)
	}

	latest, err := s.listingRepo.FindLatest(s.ctx, "", 2)
	s.Require().NoError(err)
	s.Require().Len(latest, 2)
	s.Equal("XYZ", latest[0].Token)
	s.Equal("ABC", latest[1].Token)
	s.True(latest[0].PriceUSDT.Valid)
	s.Equal("0.1234", latest[0].PriceUSDT.Decimal.String())

	binance, err := s.listingRepo.FindLatest(s.ctx, "binance", 10)
	s.Require().NoError(err)
	s.Len(binance, 2)

	got, err := s.listingRepo.FindById(s.ctx, latest[1].Id)
	s.Require().NoError(err)
	s.Equal("OKX", got.Exchange)
	s.False(got.PriceUSDT.Valid)
}
