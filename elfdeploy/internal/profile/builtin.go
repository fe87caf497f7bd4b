// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package profile

var builtin = [...]Profile{
	{Name: "rp2040", Family: 0xe48bff56, Transport: UF2, Description: "Raspberry Pi RP2040"},
	{Name: "absolute", Family: 0xe48bff57, Transport: UF2, Description: "Raspberry Pi Microcontrollers: Absolute (unpartitioned) download"},
	{Name: "data", Family: 0xe48bff58, Transport: UF2, Description: "Raspberry Pi Microcontrollers: Data partition download"},
	{Name: "rp2350_arm_s", Family: 0xe48bff59, Transport: UF2, Description: "Raspberry Pi RP2350, Secure Arm image"},
	{Name: "rp2350_riscv", Family: 0xe48bff5a, Transport: UF2, Description: "Raspberry Pi RP2350, RISC-V image"},
	{Name: "rp2350_arm_ns", Family: 0xe48bff5b, Transport: UF2, Description: "Raspberry Pi RP2350, Non-secure Arm image"},
	{Name: "samd21", Family: 0x68ed2b88, Transport: UF2, Description: "Microchip (Atmel) SAMD21"},
	{Name: "samd51", Family: 0x55114460, Transport: UF2, Description: "Microchip (Atmel) SAMD51"},
	{Name: "nrf52", Family: 0x1b57745f, Transport: UF2, Description: "Nordic NRF52"},
	{Name: "nrf52833", Family: 0x621e937a, Transport: UF2, Description: "Nordic NRF52833"},
	{Name: "nrf52840", Family: 0xada52840, Transport: UF2, Description: "Nordic NRF52840"},
	{Name: "stm32f0", Family: 0x647824b6, Transport: UF2, Description: "ST STM32F0xx"},
	{Name: "stm32f1", Family: 0x5ee21072, Transport: UF2, Description: "ST STM32F103"},
	{Name: "stm32f4", Family: 0x57755a57, Transport: UF2, Description: "ST STM32F4xx"},
	{Name: "stm32f7", Family: 0x53b80f00, Transport: UF2, Description: "ST STM32F7xx"},
	{Name: "stm32h7", Family: 0x6db66082, Transport: UF2, Description: "ST STM32H7xx"},
	{Name: "stm32l4", Family: 0x00ff6919, Transport: UF2, Description: "ST STM32L4xx"},
	{Name: "esp32s2", Family: 0xbfdd4eee, Transport: UF2, Description: "ESP32-S2"},
	{Name: "esp32s3", Family: 0xc47e5767, Transport: UF2, Description: "ESP32-S3"},
	{Name: "mimxrt10xx", Family: 0x4fb2d5bd, Transport: UF2, Description: "NXP i.MX RT10XX"},
	{Name: "stm32", GapFill: 0xff, Align: 1024, Transport: DFU, Description: "STM32 system bootloader via USB DFU"},
}
