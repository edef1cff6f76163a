package catalog

func isProductOnSale(price float64, saleEnabled bool, salePrice float64) bool {
	return saleEnabled && salePrice > 0 && salePrice < price
}

func effectiveProductPrice(price float64, saleEnabled bool, salePrice float64) float64 {
	if isProductOnSale(price, saleEnabled, salePrice) {
		return salePrice
	}
	return price
}
