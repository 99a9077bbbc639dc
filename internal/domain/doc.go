// Package domain models the Comunidad de Madrid COVID-19 accumulated incidence
// datasets and the chart derived from them.
//
// # Data Source
//
// The regional open data portal (https://datos.comunidad.madrid) publishes the
// accumulated incidence per municipality/district and per basic health zone as
// pandas "split" JSON documents:
//
//	{"columns": ["municipio_distrito", "fecha_informe", ...],
//	 "index":   [0, 1, ...],
//	 "data":    [["Getafe", "2021/01/12 10:57:00", 612.48, ...], ...]}
//
// Only the entity name, report date and 14-day rate columns are kept. Column
// names differ between the two datasets, so each source declares its own
// mapping (see [SourceSpec]).
//
// # Conventions
//
// Report dates:
//
//	Published as "YYYY/MM/DD hh:mm:ss" strings; ISO 8601 strings and epoch
//	milliseconds (pandas' default date encoding) are also accepted. Only the
//	calendar day is kept, in UTC.
//
// Incidence rate:
//
//	Cases per 100,000 inhabitants over the trailing 14 days, published with
//	decimals. Rounded to the nearest integer with ties to even, which is what
//	the portal's own tooling (numpy) does. Missing or negative rates reject the
//	whole table.
//
// Entities:
//
//	Municipality, Madrid city district or basic health zone name. Names from
//	different sources are not deduplicated; the datasets are assumed disjoint.
//
// # Chart
//
// [BuildChart] turns a selection of entity names into a [ChartSpec]: one line
// per entity plus the dashboard's fixed threshold lines. It is a pure function
// of the records and the selection.
package domain
