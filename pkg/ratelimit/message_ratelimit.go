// Package ratelimit — Mesaj spam koruması için kullanıcı bazlı rate limiting.
//
// Tasarım:
// - window süresi içinde maxMessages mesaja izin verilir.
// - Limit aşıldığında cooldown başlar — cooldown süresince tüm mesajlar reddedilir.
// - Cooldown bitince pencere sıfırlanır, kullanıcı tekrar mesaj atabilir.
//
// Key olarak userID kullanılır (IP değil) — mesaj gönderme authenticated
// bir işlemdir, kullanıcı bazlı takip doğru birimdir.
package ratelimit

import (
	"sync"
	"time"
)

// messageBucket, bir kullanıcı için mesaj sayacı ve cooldown bilgisi tutar.
//
// İki durumlu:
// 1. Normal mod: count artırılır, windowStart bazlı pencere kontrolü.
// 2. Cooldown mod: cooldownUntil > now → tüm mesajlar reddedilir.
type messageBucket struct {
	count         int
	windowStart   time.Time
	cooldownUntil time.Time // zero value = cooldown yok
}

// MessageRateLimiter, kullanıcı bazlı mesaj spam koruması.
//
// Kullanım:
//
//	limiter := ratelimit.NewMessageRateLimiter(5, 5*time.Second, 15*time.Second)
//	if !limiter.Allow(userID) { return 429 }
type MessageRateLimiter struct {
	mu          sync.Mutex
	buckets     map[string]*messageBucket
	maxMessages int
	window      time.Duration
	cooldown    time.Duration
	stopCleanup chan struct{}
}

// NewMessageRateLimiter, yeni mesaj rate limiter oluşturur ve arka plan
// temizleme goroutine'ini başlatır.
//
// maxMessages: pencere başına izin verilen mesaj sayısı (ör: 5).
// window: pencere süresi (ör: 5*time.Second → 5 saniyede 5 mesaj).
// cooldown: limit aşıldığında uygulanan bekleme süresi (ör: 15*time.Second).
func NewMessageRateLimiter(maxMessages int, window, cooldown time.Duration) *MessageRateLimiter {
	rl := &MessageRateLimiter{
		buckets:     make(map[string]*messageBucket),
		maxMessages: maxMessages,
		window:      window,
		cooldown:    cooldown,
		stopCleanup: make(chan struct{}),
	}

	// Bucket'lar kısa ömürlüdür ama çok sayıda kullanıcıda bellek
	// birikmesini önlemek için periyodik temizleme gerekir.
	go rl.cleanupLoop()

	return rl
}

// Allow, verilen kullanıcının mesaj göndermesine izin verilip verilmediğini döner.
// İzin veriliyorsa sayaç artırılır (tek atomik işlem).
func (rl *MessageRateLimiter) Allow(userID string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[userID]
	if !ok {
		rl.buckets[userID] = &messageBucket{count: 1, windowStart: now}
		return true
	}

	// Cooldown aktif mi?
	if now.Before(b.cooldownUntil) {
		return false
	}

	// Pencere süresi dolmuşsa sıfırla
	if now.Sub(b.windowStart) > rl.window {
		b.count = 1
		b.windowStart = now
		b.cooldownUntil = time.Time{}
		return true
	}

	b.count++
	if b.count > rl.maxMessages {
		// Limit aşıldı — cooldown başlat
		b.cooldownUntil = now.Add(rl.cooldown)
		return false
	}

	return true
}

// Close, temizleme goroutine'ini durdurur.
func (rl *MessageRateLimiter) Close() {
	close(rl.stopCleanup)
}

// cleanupLoop, süresi dolmuş bucket'ları periyodik olarak temizler.
func (rl *MessageRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evictStale()
		case <-rl.stopCleanup:
			return
		}
	}
}

// evictStale, hem penceresi hem cooldown'u geçmiş bucket'ları siler.
func (rl *MessageRateLimiter) evictStale() {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for userID, b := range rl.buckets {
		if now.Sub(b.windowStart) > rl.window && now.After(b.cooldownUntil) {
			delete(rl.buckets, userID)
		}
	}
}
