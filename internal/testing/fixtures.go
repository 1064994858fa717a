package testing

import (
	"time"

	"github.com/aristath/exposure/internal/domain"
)

// BrokerRow builds one broker export row with every required column.
func BrokerRow(symbol, description, quantity, price, value string) map[string]string {
	return map[string]string{
		"Symbol":             symbol,
		"Description":        description,
		"Quantity":           quantity,
		"Last Price":         price,
		"Current Value":      value,
		"Type":               "Margin",
		"Percent Of Account": "--",
	}
}

// NewStockWithCallFixture returns 100 AAPL shares at $150 and one long
// April 2025 $160 call.
func NewStockWithCallFixture() []map[string]string {
	return []map[string]string{
		BrokerRow("AAPL", "APPLE INC", "100", "$150.00", "$15,000.00"),
		BrokerRow(" -AAPL250417C160", "AAPL APR 17 2025 $160 CALL", "1", "$5.00", "$500.00"),
	}
}

// NewOrphanedOptionsFixture returns three SPY options without a SPY stock row.
func NewOrphanedOptionsFixture() []map[string]string {
	return []map[string]string{
		BrokerRow(" -SPY250620C520", "SPY JUN 20 2025 $520 CALL", "2", "$6.10", "$1,220.00"),
		BrokerRow(" -SPY250620P480", "SPY JUN 20 2025 $480 PUT", "-1", "$7.40", "($740.00)"),
		BrokerRow(" -SPY250919C550", "SPY SEP 19 2025 $550 CALL", "1", "$9.00", "$900.00"),
	}
}

// BrokerCSVFixture is a small broker export with a money market row, a
// pending activity row and the disclaimer footer brokers append.
const BrokerCSVFixture = "\ufeffAccount Number,Account Name,Symbol,Description,Quantity,Last Price,Last Price Change,Current Value,Today's Gain/Loss Dollar,Percent Of Account,Average Cost Basis,Type\n" +
	"X1,Individual,SPAXX**,HELD IN MONEY MARKET,,,,$2500.00,,10.00%,,Cash\n" +
	"X1,Individual,AAPL,APPLE INC,100,$150.00,+$1.20,\"$15,000.00\",+$120.00,60.00%,$140.00,Margin\n" +
	"X1,Individual,TSLA,TESLA INC,-20,$200.00,-$2.00,($4000.00),+$40.00,-16.00%,$220.00,Margin\n" +
	"X1,Individual, -AAPL250417C160,AAPL APR 17 2025 $160 CALL,1,$5.00,+$0.10,$500.00,+$10.00,2.00%,$4.50,Margin\n" +
	"X1,Individual,Pending Activity,,,,,$125.00,,,,\n" +
	"\n" +
	"\"The data and information in this spreadsheet is provided to you solely for your use.\"\n" +
	"\"Date downloaded 03/17/2025 2:30 PM ET\"\n"

// NewDailyCloses builds consecutive weekday closes starting at start, with
// each close moved by returns[i] from the previous one.
func NewDailyCloses(start time.Time, first float64, returns []float64) []domain.DailyClose {
	closes := make([]domain.DailyClose, 0, len(returns)+1)
	day := start
	price := first
	closes = append(closes, domain.DailyClose{Date: day, Close: price})
	for _, r := range returns {
		day = day.AddDate(0, 0, 1)
		for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			day = day.AddDate(0, 0, 1)
		}
		price *= 1 + r
		closes = append(closes, domain.DailyClose{Date: day, Close: price})
	}
	return closes
}
