package controllers

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/agroph/portal/utils"
	"github.com/agroph/portal/weather"
)

// WeatherController proxies current conditions and forecasts.
type WeatherController struct {
	service *weather.Service
}

// NewWeatherController creates a new WeatherController instance.
func NewWeatherController(service *weather.Service) *WeatherController {
	return &WeatherController{service: service}
}

// Cities lists the supported cities with their coordinates.
func (w *WeatherController) Cities(ctx *gin.Context) {
	utils.Success(ctx, weather.Cities)
}

// ByCity returns current weather for a supported city.
func (w *WeatherController) ByCity(ctx *gin.Context) {
	name, _ := url.PathUnescape(ctx.Param("city"))
	res, err := w.service.ForCity(ctx.Request.Context(), name)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, res)
}

// ByCoordinates returns current weather for ?lat=&lon=.
func (w *WeatherController) ByCoordinates(ctx *gin.Context) {
	lat, errLat := strconv.ParseFloat(ctx.Query("lat"), 64)
	lon, errLon := strconv.ParseFloat(ctx.Query("lon"), 64)
	if errLat != nil || errLon != nil {
		utils.Error(ctx, http.StatusBadRequest, 40080, "lat and lon are required")
		return
	}
	res, err := w.service.ForCoordinates(ctx.Request.Context(), lat, lon)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, res)
}

// Forecast returns the uncached 5-day forecast for a supported city.
func (w *WeatherController) Forecast(ctx *gin.Context) {
	name, _ := url.PathUnescape(ctx.Param("city"))
	res, err := w.service.ForecastFor(ctx.Request.Context(), name)
	if err != nil {
		utils.Fail(ctx, err)
		return
	}
	utils.Success(ctx, res)
}
