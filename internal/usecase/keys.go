package usecase

// Redis key layout shared by the redemption flow.

func redemptionLockKey(codeValue string) string {
	return "redeem_lock:" + codeValue
}

func clientRateKey(ip string) string {
	return "rate_limit:redeem:" + ip
}
