package flipside

import (
	"fmt"

	"github.com/canopy-network/txdash/pkg/utils"
)

// Day range accepted by the hourly query.
const (
	MinDays     = 1
	MaxDays     = 30
	DefaultDays = 7
)

const hourlyTxTemplate = `
SELECT 
  date_trunc('hour', block_timestamp) as hour,
  count(distinct tx_hash) as tx_count
FROM ethereum.core.fact_transactions 
WHERE block_timestamp >= GETDATE() - interval '%d days'
GROUP BY 1
ORDER BY 1
`

// ClampDays bounds days to [MinDays, MaxDays].
func ClampDays(days int) int {
	return utils.Clamp(days, MinDays, MaxDays)
}

// HourlyTxSQL returns the hourly distinct-transaction query for the last
// days days. days is clamped before it is written into the statement, so the
// text only ever holds an integer in range.
func HourlyTxSQL(days int) string {
	return fmt.Sprintf(hourlyTxTemplate, ClampDays(days))
}
